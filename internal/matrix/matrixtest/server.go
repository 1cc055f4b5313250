// Package matrixtest provides an in-memory MatrixALM REST server for tests.
package matrixtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	projectParameterConstant         = "project"
	itemParameterConstant            = "item"
	authorizationHeaderConstant      = "Authorization"
	authorizationTemplateConstant    = "Token %s"
	contentTypeHeaderConstant        = "Content-Type"
	jsonMediaTypeConstant            = "application/json"
	multipartFileFieldConstant       = "file"
	multipartMemoryLimitConstant     = 1 << 20
	uploadedFilePathTemplateConstant = "/files/%d/%s"
	uploadedFileKeyTemplateConstant  = "key-%d"
)

// Fixture declares the repository content served by Server.
type Fixture struct {
	Project            string
	Token              string
	ProjectPayload     string
	TreePayload        string
	Items              map[string]string
	Resources          map[string]int
	ProtectedResources map[string]int
}

// Upload records a file received by the upload endpoint.
type Upload struct {
	FileName string
	Content  []byte
}

// FieldUpdate records a multipart item update.
type FieldUpdate struct {
	ItemReference string
	Fields        map[string]string
}

// Server is a running fake repository.
type Server struct {
	*httptest.Server
	fixture         Fixture
	mutex           sync.Mutex
	uploads         []Upload
	updates         []FieldUpdate
	itemRequests    []string
	nextFileID      atomic.Int64
	resourceFetches atomic.Int64
}

// NewServer starts a fake repository serving fixture. Callers must Close it.
func NewServer(fixture Fixture) *Server {
	server := &Server{fixture: fixture}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Route("/rest/1/{project}", func(projectRouter chi.Router) {
		projectRouter.Use(server.requireToken)
		projectRouter.Get("/", server.handleProject)
		projectRouter.Get("/tree", server.handleTree)
		projectRouter.Get("/item/{item}", server.handleItem)
		projectRouter.Put("/item/{item}", server.handleUpdate)
		projectRouter.Post("/file", server.handleUpload)
	})
	router.NotFound(server.handleResource)

	server.Server = httptest.NewServer(router)
	return server
}

// Uploads returns the files received so far.
func (server *Server) Uploads() []Upload {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return append([]Upload(nil), server.uploads...)
}

// FieldUpdates returns the item updates received so far.
func (server *Server) FieldUpdates() []FieldUpdate {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return append([]FieldUpdate(nil), server.updates...)
}

// ItemRequests returns the item references fetched so far, in arrival order.
func (server *Server) ItemRequests() []string {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	return append([]string(nil), server.itemRequests...)
}

// ResourceFetches counts requests served outside the REST API.
func (server *Server) ResourceFetches() int64 {
	return server.resourceFetches.Load()
}

func (server *Server) authorized(request *http.Request) bool {
	if len(server.fixture.Token) == 0 {
		return true
	}
	return request.Header.Get(authorizationHeaderConstant) == fmt.Sprintf(authorizationTemplateConstant, server.fixture.Token)
}

func (server *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if !server.authorized(request) {
			http.Error(responseWriter, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if chi.URLParam(request, projectParameterConstant) != server.fixture.Project {
			http.NotFound(responseWriter, request)
			return
		}
		next.ServeHTTP(responseWriter, request)
	})
}

func (server *Server) handleProject(responseWriter http.ResponseWriter, request *http.Request) {
	writeJSON(responseWriter, server.fixture.ProjectPayload)
}

func (server *Server) handleTree(responseWriter http.ResponseWriter, request *http.Request) {
	writeJSON(responseWriter, server.fixture.TreePayload)
}

func (server *Server) handleItem(responseWriter http.ResponseWriter, request *http.Request) {
	itemReference := chi.URLParam(request, itemParameterConstant)

	server.mutex.Lock()
	server.itemRequests = append(server.itemRequests, itemReference)
	server.mutex.Unlock()

	payload, found := server.fixture.Items[itemReference]
	if !found {
		http.NotFound(responseWriter, request)
		return
	}
	writeJSON(responseWriter, payload)
}

func (server *Server) handleUpload(responseWriter http.ResponseWriter, request *http.Request) {
	filePart, fileHeader, formError := request.FormFile(multipartFileFieldConstant)
	if formError != nil {
		http.Error(responseWriter, formError.Error(), http.StatusBadRequest)
		return
	}
	defer filePart.Close()

	content, readError := io.ReadAll(filePart)
	if readError != nil {
		http.Error(responseWriter, readError.Error(), http.StatusBadRequest)
		return
	}

	fileID := server.nextFileID.Add(1)
	server.mutex.Lock()
	server.uploads = append(server.uploads, Upload{FileName: fileHeader.Filename, Content: content})
	server.mutex.Unlock()

	encoded, _ := json.Marshal(map[string]any{
		"fileId":       fileID,
		"fileFullPath": fmt.Sprintf(uploadedFilePathTemplateConstant, fileID, fileHeader.Filename),
		"key":          fmt.Sprintf(uploadedFileKeyTemplateConstant, fileID),
	})
	writeJSON(responseWriter, string(encoded))
}

func (server *Server) handleUpdate(responseWriter http.ResponseWriter, request *http.Request) {
	if parseError := request.ParseMultipartForm(multipartMemoryLimitConstant); parseError != nil {
		http.Error(responseWriter, parseError.Error(), http.StatusBadRequest)
		return
	}

	fields := make(map[string]string, len(request.MultipartForm.Value))
	for name, values := range request.MultipartForm.Value {
		fields[name] = strings.Join(values, ",")
	}

	server.mutex.Lock()
	server.updates = append(server.updates, FieldUpdate{
		ItemReference: chi.URLParam(request, itemParameterConstant),
		Fields:        fields,
	})
	server.mutex.Unlock()

	writeJSON(responseWriter, `{}`)
}

func (server *Server) handleResource(responseWriter http.ResponseWriter, request *http.Request) {
	server.resourceFetches.Add(1)

	if status, found := server.fixture.ProtectedResources[request.URL.Path]; found {
		if !server.authorized(request) {
			responseWriter.WriteHeader(http.StatusUnauthorized)
			return
		}
		responseWriter.WriteHeader(status)
		return
	}
	if status, found := server.fixture.Resources[request.URL.Path]; found {
		responseWriter.WriteHeader(status)
		return
	}
	responseWriter.WriteHeader(http.StatusNotFound)
}

func writeJSON(responseWriter http.ResponseWriter, payload string) {
	responseWriter.Header().Set(contentTypeHeaderConstant, jsonMediaTypeConstant)
	_, _ = io.WriteString(responseWriter, payload)
}

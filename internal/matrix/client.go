package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Byteflies/matrix-qms-github-actions/internal/tree"
)

const (
	restPathSegmentConstant          = "rest"
	restVersionSegmentConstant       = "1"
	treePathSegmentConstant          = "tree"
	itemPathSegmentConstant          = "item"
	filePathSegmentConstant          = "file"
	onlyThoseFieldsParameterConstant = "onlyThoseFields"
	onlyThoseFieldsValueConstant     = "1"
	authorizationHeaderConstant      = "Authorization"
	authorizationTemplateConstant    = "Token %s"
	acceptHeaderConstant             = "Accept"
	contentTypeHeaderConstant        = "Content-Type"
	jsonMediaTypeConstant            = "application/json"
	multipartFileFieldConstant       = "file"
	multipartReasonFieldConstant     = "reason"
	fieldIdentifierMarkerConstant    = "fx"
	projectFieldNameConstant         = "project"
	itemFieldNameConstant            = "item"
	fileNameFieldNameConstant        = "file name"
	fieldIdentifierFieldNameConstant = "field id"
	reasonFieldNameConstant          = "reason"
	requiredValueMessageConstant     = "value required"
	fieldIdentifierMessageConstant   = "must contain fx"
	invalidBaseURLTemplateConstant   = "invalid repository base url %q: %w"
	bodyExcerptLimitConstant         = 1024
)

// DefaultTimeout bounds every repository call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// HTTPClient executes HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ClientConfiguration describes how to reach the repository.
type ClientConfiguration struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the MatrixALM REST API rooted at {base}/rest/1.
type Client struct {
	httpClient HTTPClient
	baseURL    *url.URL
	token      string
}

// NewClient validates the configuration and constructs a Client. A nil
// httpClient is replaced by an http.Client honoring the configured timeout.
func NewClient(httpClient HTTPClient, configuration ClientConfiguration) (*Client, error) {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if len(trimmedBaseURL) == 0 {
		return nil, ErrBaseURLMissing
	}

	parsedBaseURL, parseError := url.Parse(trimmedBaseURL)
	if parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, trimmedBaseURL, parseError)
	}
	if len(parsedBaseURL.Scheme) == 0 || len(parsedBaseURL.Host) == 0 {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, trimmedBaseURL, ErrBaseURLMissing)
	}

	if httpClient == nil {
		timeout := configuration.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    parsedBaseURL,
		token:      strings.TrimSpace(configuration.Token),
	}, nil
}

// BaseURL returns a copy of the repository base URL.
func (client *Client) BaseURL() *url.URL {
	duplicated := *client.baseURL
	return &duplicated
}

// Token returns the credential attached to repository calls.
func (client *Client) Token() string {
	return client.token
}

// GetProject fetches project metadata.
func (client *Client) GetProject(executionContext context.Context, project string) (Project, error) {
	projectName := strings.TrimSpace(project)
	if len(projectName) == 0 {
		return Project{}, InvalidInputError{FieldName: projectFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var response projectResponse
	if requestError := client.getJSON(executionContext, OperationGetProject, &response, projectName); requestError != nil {
		return Project{}, requestError
	}
	return response.project(), nil
}

// GetTree fetches and decodes the project tree.
func (client *Client) GetTree(executionContext context.Context, project string) (tree.Node, error) {
	projectName := strings.TrimSpace(project)
	if len(projectName) == 0 {
		return nil, InvalidInputError{FieldName: projectFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payload, requestError := client.get(executionContext, OperationGetTree, projectName, treePathSegmentConstant)
	if requestError != nil {
		return nil, requestError
	}

	root, decodeError := tree.Decode(payload)
	if decodeError != nil {
		return nil, ResponseDecodingError{Operation: OperationGetTree, Cause: decodeError}
	}
	return root, nil
}

// GetItem fetches the detail record of one item.
func (client *Client) GetItem(executionContext context.Context, project string, referenceID string) (Item, error) {
	projectName := strings.TrimSpace(project)
	if len(projectName) == 0 {
		return Item{}, InvalidInputError{FieldName: projectFieldNameConstant, Message: requiredValueMessageConstant}
	}
	itemReference := strings.TrimSpace(referenceID)
	if len(itemReference) == 0 {
		return Item{}, InvalidInputError{FieldName: itemFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var response itemResponse
	if requestError := client.getJSON(executionContext, OperationGetItem, &response, projectName, itemPathSegmentConstant, itemReference); requestError != nil {
		return Item{}, requestError
	}
	return response.item(itemReference), nil
}

// UploadFile stores content as a project file.
func (client *Client) UploadFile(executionContext context.Context, project string, fileName string, content io.Reader) (UploadedFile, error) {
	projectName := strings.TrimSpace(project)
	if len(projectName) == 0 {
		return UploadedFile{}, InvalidInputError{FieldName: projectFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(fileName)) == 0 {
		return UploadedFile{}, InvalidInputError{FieldName: fileNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var body bytes.Buffer
	formWriter := multipart.NewWriter(&body)
	filePart, partError := formWriter.CreateFormFile(multipartFileFieldConstant, fileName)
	if partError != nil {
		return UploadedFile{}, OperationError{Operation: OperationUploadFile, Cause: partError}
	}
	if _, copyError := io.Copy(filePart, content); copyError != nil {
		return UploadedFile{}, OperationError{Operation: OperationUploadFile, Cause: copyError}
	}
	if closeError := formWriter.Close(); closeError != nil {
		return UploadedFile{}, OperationError{Operation: OperationUploadFile, Cause: closeError}
	}

	endpoint := client.endpoint(false, projectName, filePathSegmentConstant)
	payload, requestError := client.do(executionContext, OperationUploadFile, http.MethodPost, endpoint, &body, formWriter.FormDataContentType())
	if requestError != nil {
		return UploadedFile{}, requestError
	}

	var uploaded UploadedFile
	if decodeError := json.Unmarshal(payload, &uploaded); decodeError != nil {
		return UploadedFile{}, ResponseDecodingError{Operation: OperationUploadFile, Cause: decodeError}
	}
	return uploaded, nil
}

// UpdateItemField writes value, JSON encoded, into the fxNNN field of an item.
func (client *Client) UpdateItemField(executionContext context.Context, project string, referenceID string, reason string, fieldID string, value any) error {
	projectName := strings.TrimSpace(project)
	if len(projectName) == 0 {
		return InvalidInputError{FieldName: projectFieldNameConstant, Message: requiredValueMessageConstant}
	}
	itemReference := strings.TrimSpace(referenceID)
	if len(itemReference) == 0 {
		return InvalidInputError{FieldName: itemFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if fieldError := ValidateFieldID(fieldID); fieldError != nil {
		return fieldError
	}
	trimmedFieldID := strings.TrimSpace(fieldID)
	if len(strings.TrimSpace(reason)) == 0 {
		return InvalidInputError{FieldName: reasonFieldNameConstant, Message: requiredValueMessageConstant}
	}

	encodedValue, encodeError := json.Marshal(value)
	if encodeError != nil {
		return OperationError{Operation: OperationUpdateItemField, Cause: encodeError}
	}

	var body bytes.Buffer
	formWriter := multipart.NewWriter(&body)
	if writeError := formWriter.WriteField(multipartReasonFieldConstant, reason); writeError != nil {
		return OperationError{Operation: OperationUpdateItemField, Cause: writeError}
	}
	if writeError := formWriter.WriteField(trimmedFieldID, string(encodedValue)); writeError != nil {
		return OperationError{Operation: OperationUpdateItemField, Cause: writeError}
	}
	if closeError := formWriter.Close(); closeError != nil {
		return OperationError{Operation: OperationUpdateItemField, Cause: closeError}
	}

	endpoint := client.endpoint(true, projectName, itemPathSegmentConstant, itemReference)
	_, requestError := client.do(executionContext, OperationUpdateItemField, http.MethodPut, endpoint, &body, formWriter.FormDataContentType())
	return requestError
}

// ValidateFieldID rejects field identifiers that do not name an fxNNN field.
func ValidateFieldID(fieldID string) error {
	if !strings.Contains(strings.TrimSpace(fieldID), fieldIdentifierMarkerConstant) {
		return InvalidInputError{FieldName: fieldIdentifierFieldNameConstant, Message: fieldIdentifierMessageConstant}
	}
	return nil
}

// Authorize attaches the repository credential to request when one is configured.
func (client *Client) Authorize(request *http.Request) {
	if len(client.token) == 0 {
		return
	}
	request.Header.Set(authorizationHeaderConstant, fmt.Sprintf(authorizationTemplateConstant, client.token))
}

func (client *Client) endpoint(onlyThoseFields bool, segments ...string) string {
	endpointURL := client.baseURL.JoinPath(append([]string{restPathSegmentConstant, restVersionSegmentConstant}, segments...)...)
	if onlyThoseFields {
		query := endpointURL.Query()
		query.Set(onlyThoseFieldsParameterConstant, onlyThoseFieldsValueConstant)
		endpointURL.RawQuery = query.Encode()
	}
	return endpointURL.String()
}

func (client *Client) get(executionContext context.Context, operation OperationName, segments ...string) ([]byte, error) {
	return client.do(executionContext, operation, http.MethodGet, client.endpoint(true, segments...), nil, "")
}

func (client *Client) getJSON(executionContext context.Context, operation OperationName, target any, segments ...string) error {
	payload, requestError := client.get(executionContext, operation, segments...)
	if requestError != nil {
		return requestError
	}
	if decodeError := json.Unmarshal(payload, target); decodeError != nil {
		return ResponseDecodingError{Operation: operation, Cause: decodeError}
	}
	return nil
}

func (client *Client) do(executionContext context.Context, operation OperationName, method string, endpoint string, body io.Reader, contentType string) ([]byte, error) {
	request, requestError := http.NewRequestWithContext(executionContext, method, endpoint, body)
	if requestError != nil {
		return nil, OperationError{Operation: operation, Cause: requestError}
	}
	request.Header.Set(acceptHeaderConstant, jsonMediaTypeConstant)
	if len(contentType) > 0 {
		request.Header.Set(contentTypeHeaderConstant, contentType)
	}
	client.Authorize(request)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return nil, OperationError{Operation: operation, Cause: responseError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		excerpt, _ := io.ReadAll(io.LimitReader(response.Body, bodyExcerptLimitConstant))
		return nil, StatusError{Operation: operation, StatusCode: response.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	payload, readError := io.ReadAll(response.Body)
	if readError != nil {
		return nil, OperationError{Operation: operation, Cause: readError}
	}
	return payload, nil
}

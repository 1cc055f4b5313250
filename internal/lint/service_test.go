package lint_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Byteflies/matrix-qms-github-actions/internal/lint"
	"github.com/Byteflies/matrix-qms-github-actions/internal/matrix"
	"github.com/Byteflies/matrix-qms-github-actions/internal/matrix/matrixtest"
	"github.com/Byteflies/matrix-qms-github-actions/internal/references"
	"github.com/Byteflies/matrix-qms-github-actions/internal/richtext"
	"github.com/Byteflies/matrix-qms-github-actions/internal/tree"
)

const (
	serviceSubtestNameTemplateConstant = "%d_%s"
	projectNameConstant                = "QMS"
	tokenValueConstant                 = "lint-token"
	emptyProjectPayloadConstant        = `{"label": "Quality", "shortLabel": "QMS"}`
)

const scenarioTreePayloadConstant = `[{"id": "F-REQ-1", "title": "Requirements", "children": [
  {"id": "REQ-1", "title": "Leaf A"},
  {"id": "REQ-2", "title": "Leaf B"}
]}]`

const leafAPayloadTemplateConstant = `{"itemRef": "REQ-1", "title": "Leaf A", "fieldValList": {"fieldVal": [
  {"fieldName": "Description", "fieldType": "richtext", "value": "<p>Depends on REQ-2, see <a href=\"%s/spec\">spec</a></p>", "id": 1}
]}}`

const leafBPayloadConstant = `{"itemRef": "REQ-2", "title": "Leaf B", "fieldValList": {"fieldVal": [
  {"fieldName": "Owner", "fieldType": "text", "value": "QA", "id": 2}
]}}`

type recordingObserver struct {
	mutex  sync.Mutex
	linted []string
	failed []string
}

func (recorder *recordingObserver) ItemLinted(item tree.LeafItem, outcomes []lint.Outcome) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.linted = append(recorder.linted, item.ReferenceID)
}

func (recorder *recordingObserver) ItemFailed(item tree.LeafItem, failure error) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.failed = append(recorder.failed, item.ReferenceID)
}

func newRepositoryClient(testInstance *testing.T, baseURL string) *matrix.Client {
	testInstance.Helper()
	client, clientError := matrix.NewClient(nil, matrix.ClientConfiguration{BaseURL: baseURL, Token: tokenValueConstant})
	require.NoError(testInstance, clientError)
	return client
}

func newRepositoryProber(testInstance *testing.T, client *matrix.Client) *references.Prober {
	testInstance.Helper()
	prober, proberError := references.NewProber(nil, references.ProberConfiguration{BaseURL: client.BaseURL(), Token: client.Token()})
	require.NoError(testInstance, proberError)
	return prober
}

func TestServiceRunFolderWithTwoLeaves(testInstance *testing.T) {
	external := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusOK)
	}))
	defer external.Close()

	repository := matrixtest.NewServer(matrixtest.Fixture{
		Project:        projectNameConstant,
		Token:          tokenValueConstant,
		ProjectPayload: emptyProjectPayloadConstant,
		TreePayload:    scenarioTreePayloadConstant,
		Items: map[string]string{
			"REQ-1": fmt.Sprintf(leafAPayloadTemplateConstant, external.URL),
			"REQ-2": leafBPayloadConstant,
		},
	})
	defer repository.Close()

	client := newRepositoryClient(testInstance, repository.URL)
	recorder := &recordingObserver{}
	service := lint.NewService(client, newRepositoryProber(testInstance, client), zap.NewNop(), recorder)

	report, runError := service.Run(context.Background(), lint.Options{Project: projectNameConstant})
	require.NoError(testInstance, runError)

	expectedOutcomes := []lint.Outcome{
		{
			Project:    projectNameConstant,
			Item:       "REQ-1",
			ItemTitle:  "Leaf A",
			Field:      "Description",
			Kind:       richtext.ReferenceKindAnchor,
			Reference:  external.URL + "/spec",
			Status:     references.StatusValid,
			StatusCode: http.StatusOK,
		},
		{
			Project:   projectNameConstant,
			Item:      "REQ-1",
			ItemTitle: "Leaf A",
			Field:     "Description",
			Kind:      richtext.ReferenceKindItemReference,
			Reference: "REQ-2",
			Status:    references.StatusValid,
		},
	}
	if diff := cmp.Diff(expectedOutcomes, report.Outcomes); diff != "" {
		testInstance.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}

	require.Equal(testInstance, 2, report.Items)
	require.Empty(testInstance, report.ItemErrors)
	require.False(testInstance, report.Failed())
	require.Equal(testInstance, []string{"REQ-1", "REQ-2"}, repository.ItemRequests())
	require.Equal(testInstance, []string{"REQ-1", "REQ-2"}, recorder.linted)
	require.Empty(testInstance, recorder.failed)
}

type stubRepository struct {
	project      matrix.Project
	projectError error
	root         tree.Node
	treeError    error
	items        map[string]matrix.Item
	itemErrors   map[string]error
	mutex        sync.Mutex
	requested    []string
}

func (repository *stubRepository) GetProject(executionContext context.Context, project string) (matrix.Project, error) {
	return repository.project, repository.projectError
}

func (repository *stubRepository) GetTree(executionContext context.Context, project string) (tree.Node, error) {
	return repository.root, repository.treeError
}

func (repository *stubRepository) GetItem(executionContext context.Context, project string, referenceID string) (matrix.Item, error) {
	repository.mutex.Lock()
	repository.requested = append(repository.requested, referenceID)
	repository.mutex.Unlock()

	if itemError, failed := repository.itemErrors[referenceID]; failed {
		return matrix.Item{}, itemError
	}
	return repository.items[referenceID], nil
}

type stubProber struct {
	statuses    map[string]references.Status
	statusCodes map[string]int
	calls       *probeCalls
}

type probeCalls struct {
	mutex  sync.Mutex
	counts map[string]int
}

func (calls *probeCalls) record(rawURL string) {
	calls.mutex.Lock()
	defer calls.mutex.Unlock()
	if calls.counts == nil {
		calls.counts = map[string]int{}
	}
	calls.counts[rawURL]++
}

func (calls *probeCalls) snapshot() map[string]int {
	calls.mutex.Lock()
	defer calls.mutex.Unlock()
	duplicated := make(map[string]int, len(calls.counts))
	for rawURL, count := range calls.counts {
		duplicated[rawURL] = count
	}
	return duplicated
}

func (prober stubProber) Probe(executionContext context.Context, rawURL string) references.ProbeResult {
	if prober.calls != nil {
		prober.calls.record(rawURL)
	}
	if statusCode, known := prober.statusCodes[rawURL]; known {
		return references.ProbeResult{URL: rawURL, Status: references.StatusUnreachable, StatusCode: statusCode}
	}
	status, known := prober.statuses[rawURL]
	if !known {
		return references.ProbeResult{URL: rawURL, Status: references.StatusUnreachable, Err: errors.New("connection refused")}
	}
	return references.ProbeResult{URL: rawURL, Status: status}
}

func richTextItem(referenceID string, fragments ...string) matrix.Item {
	fields := make([]matrix.Field, 0, len(fragments))
	for fragmentIndex, fragment := range fragments {
		fields = append(fields, matrix.Field{Name: fmt.Sprintf("Field %d", fragmentIndex+1), Type: "richtext", Value: fragment, ID: int64(fragmentIndex + 1)})
	}
	return matrix.Item{ReferenceID: referenceID, Fields: fields}
}

func leafList(referenceIDs ...string) tree.Node {
	children := make([]tree.Node, 0, len(referenceIDs))
	for _, referenceID := range referenceIDs {
		children = append(children, tree.Leaf{ReferenceID: referenceID, Title: "Title " + referenceID})
	}
	return tree.List{Children: children}
}

func TestServiceRunIsolatesItemFailures(testInstance *testing.T) {
	repository := &stubRepository{
		root: leafList("REQ-1", "REQ-2", "REQ-3"),
		items: map[string]matrix.Item{
			"REQ-1": richTextItem("REQ-1", "<p>REQ-3 and REQ-9</p>"),
			"REQ-3": richTextItem("REQ-3", `<img src="https://cdn.example.com/ok.png"><img src="https://cdn.example.com/down.png">`),
		},
		itemErrors: map[string]error{"REQ-2": errors.New("boom")},
	}
	prober := stubProber{statuses: map[string]references.Status{"https://cdn.example.com/ok.png": references.StatusValid}}

	for _, parallelism := range []int{1, 3} {
		testInstance.Run(fmt.Sprintf("parallelism_%d", parallelism), func(subtest *testing.T) {
			recorder := &recordingObserver{}
			report, runError := lint.NewService(repository, prober, zap.NewNop(), recorder).Run(context.Background(), lint.Options{Project: projectNameConstant, Parallelism: parallelism})
			require.NoError(subtest, runError)

			statuses := make([]string, 0, len(report.Outcomes))
			for _, outcome := range report.Outcomes {
				statuses = append(statuses, outcome.Item+" "+outcome.Reference+" "+outcome.Status.String())
			}
			require.Equal(subtest, []string{
				"REQ-1 REQ-3 VALID",
				"REQ-1 REQ-9 NOT_FOUND",
				"REQ-3 https://cdn.example.com/ok.png VALID",
				"REQ-3 https://cdn.example.com/down.png UNREACHABLE",
			}, statuses)

			require.Len(subtest, report.ItemErrors, 1)
			require.Equal(subtest, "REQ-2", report.ItemErrors[0].Item)
			require.Contains(subtest, report.ItemErrors[0].Message, "boom")
			require.Equal(subtest, 2, report.Items)
			require.True(subtest, report.Failed())
			require.Equal(subtest, []string{"REQ-2"}, recorder.failed)
			require.ElementsMatch(subtest, []string{"REQ-1", "REQ-3"}, recorder.linted)
		})
	}
}

func TestServiceRunProbesEveryOccurrenceOnce(testInstance *testing.T) {
	const sharedImageURL = "https://cdn.example.com/logo.png"
	const failingLinkURL = "https://docs.example.com/broken"

	repository := &stubRepository{
		root: leafList("REQ-1", "REQ-2"),
		items: map[string]matrix.Item{
			"REQ-1": richTextItem("REQ-1",
				fmt.Sprintf(`<img src="%s"><a href="%s">manual</a>`, sharedImageURL, failingLinkURL),
				fmt.Sprintf(`<img src="%s">`, sharedImageURL),
			),
			"REQ-2": richTextItem("REQ-2", fmt.Sprintf(`<p><img src="%s"></p>`, sharedImageURL)),
		},
	}

	for _, parallelism := range []int{1, 2} {
		testInstance.Run(fmt.Sprintf("parallelism_%d", parallelism), func(subtest *testing.T) {
			calls := &probeCalls{}
			prober := stubProber{
				statuses:    map[string]references.Status{sharedImageURL: references.StatusValid},
				statusCodes: map[string]int{failingLinkURL: http.StatusInternalServerError},
				calls:       calls,
			}

			report, runError := lint.NewService(repository, prober, nil, nil).Run(context.Background(), lint.Options{Project: projectNameConstant, Parallelism: parallelism})
			require.NoError(subtest, runError)

			require.Equal(subtest, map[string]int{sharedImageURL: 3, failingLinkURL: 1}, calls.snapshot())
			require.Len(subtest, report.Outcomes, 4)
			require.Equal(subtest, 1, report.Summary().Unreachable)
			require.Equal(subtest, 3, report.Summary().Valid)
		})
	}
}

func TestServiceRunDoesNotRetryServerErrors(testInstance *testing.T) {
	hits := &probeCalls{}
	resourceServer := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		hits.record(request.URL.Path)
		if request.URL.Path == "/unstable" {
			responseWriter.WriteHeader(http.StatusInternalServerError)
			return
		}
		responseWriter.WriteHeader(http.StatusOK)
	}))
	defer resourceServer.Close()

	repository := &stubRepository{
		root: leafList("REQ-1", "REQ-2"),
		items: map[string]matrix.Item{
			"REQ-1": richTextItem("REQ-1", fmt.Sprintf(`<a href="%s/unstable">status</a>`, resourceServer.URL), fmt.Sprintf(`<img src="%s/stable">`, resourceServer.URL)),
			"REQ-2": richTextItem("REQ-2", fmt.Sprintf(`<a href="%s/unstable">status</a>`, resourceServer.URL)),
		},
	}
	repositoryBaseURL, parseError := url.Parse("https://matrix.example.com")
	require.NoError(testInstance, parseError)
	prober, proberError := references.NewProber(resourceServer.Client(), references.ProberConfiguration{BaseURL: repositoryBaseURL})
	require.NoError(testInstance, proberError)

	report, runError := lint.NewService(repository, prober, nil, nil).Run(context.Background(), lint.Options{Project: projectNameConstant, Parallelism: 2})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, map[string]int{"/unstable": 2, "/stable": 1}, hits.snapshot())
	require.Equal(testInstance, 2, report.Summary().Unreachable)
	for _, outcome := range report.Outcomes {
		if outcome.Status == references.StatusUnreachable {
			require.Equal(testInstance, http.StatusInternalServerError, outcome.StatusCode)
		}
	}
}

func TestServiceRunFatalFailures(testInstance *testing.T) {
	testCases := []struct {
		name       string
		repository *stubRepository
		options    lint.Options
		target     error
	}{
		{
			name:       "missing_project",
			repository: &stubRepository{root: leafList("REQ-1")},
			options:    lint.Options{},
			target:     lint.ErrProjectMissing,
		},
		{
			name:       "project_fetch",
			repository: &stubRepository{projectError: matrix.StatusError{Operation: matrix.OperationGetProject, StatusCode: http.StatusForbidden}},
			options:    lint.Options{Project: projectNameConstant},
		},
		{
			name:       "tree_fetch",
			repository: &stubRepository{treeError: matrix.StatusError{Operation: matrix.OperationGetTree, StatusCode: http.StatusBadGateway}},
			options:    lint.Options{Project: projectNameConstant},
		},
		{
			name:       "invalid_categories",
			repository: &stubRepository{root: leafList("REQ-1")},
			options:    lint.Options{Project: projectNameConstant, Categories: []string{"RE Q"}},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(serviceSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subtest *testing.T) {
			_, runError := lint.NewService(testCase.repository, stubProber{}, nil, nil).Run(context.Background(), testCase.options)
			require.Error(subtest, runError)
			if testCase.target != nil {
				require.ErrorIs(subtest, runError, testCase.target)
			}
			require.Empty(subtest, testCase.repository.requested)
		})
	}
}

func TestServiceRunFiltersItemsAndReportsDuplicates(testInstance *testing.T) {
	repository := &stubRepository{
		root: tree.List{Children: []tree.Node{
			tree.Leaf{ReferenceID: "REQ-1", Title: "One"},
			tree.Leaf{ReferenceID: "REQ-2", Title: "Two"},
			tree.Leaf{ReferenceID: "REQ-1", Title: "Copy"},
		}},
		items: map[string]matrix.Item{"REQ-2": richTextItem("REQ-2", "<p>REQ-1</p>")},
	}

	core, logs := observer.New(zap.WarnLevel)
	report, runError := lint.NewService(repository, stubProber{}, zap.New(core), nil).Run(context.Background(), lint.Options{
		Project: projectNameConstant,
		Items:   []string{"REQ-2", "REQ-77", "REQ-2"},
	})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []string{"REQ-2"}, repository.requested)
	require.Equal(testInstance, []string{"REQ-1"}, report.Duplicates)
	require.Equal(testInstance, []lint.ItemError{{Item: "REQ-77", Message: "item is not part of the project tree"}}, report.ItemErrors)
	require.Len(testInstance, report.Outcomes, 1)
	require.Equal(testInstance, references.StatusValid, report.Outcomes[0].Status)
	require.Equal(testInstance, 1, logs.FilterMessage("duplicate reference identifier in tree, keeping first occurrence").Len())
}

func TestServiceLintItemLogsFieldScans(testInstance *testing.T) {
	repository := &stubRepository{
		items: map[string]matrix.Item{"REQ-1": richTextItem("REQ-1", "<p>No references here</p>", `<p>REQ-1 <img src="https://cdn.example.com/a.png"></p>`)},
	}
	prober := stubProber{statuses: map[string]references.Status{"https://cdn.example.com/a.png": references.StatusValid}}
	target := lint.Target{
		Project: projectNameConstant,
		Index:   references.NewIndex([]tree.LeafItem{{ReferenceID: "REQ-1", Title: "One"}}),
		Scanner: richtext.NewDefaultScanner(),
	}

	core, logs := observer.New(zap.DebugLevel)
	outcomes, lintError := lint.NewService(repository, prober, zap.New(core), nil).LintItem(context.Background(), target, tree.LeafItem{ReferenceID: "REQ-1", Title: "One"})
	require.NoError(testInstance, lintError)
	require.Len(testInstance, outcomes, 2)

	emptyFields := logs.FilterMessage("field has no references").All()
	require.Len(testInstance, emptyFields, 1)
	require.Equal(testInstance, "Field 1", emptyFields[0].ContextMap()["field"])

	scannedFields := logs.FilterMessage("field scanned").All()
	require.Len(testInstance, scannedFields, 1)
	scannedContext := scannedFields[0].ContextMap()
	require.Equal(testInstance, "Field 2", scannedContext["field"])
	require.Equal(testInstance, int64(1), scannedContext["images"])
	require.Equal(testInstance, int64(0), scannedContext["anchors"])
	require.Equal(testInstance, int64(1), scannedContext["item_references"])
}

func TestServiceRunExtendsCategoriesFromProject(testInstance *testing.T) {
	repository := &stubRepository{
		project: matrix.Project{Categories: []string{"WI", "not valid", "REQ"}},
		root:    leafList("WI-1", "REQ-1"),
		items:   map[string]matrix.Item{"REQ-1": richTextItem("REQ-1", "<p>WI-1 WI-2 CAPA-1</p>")},
	}

	withoutProject, withoutError := lint.NewService(repository, stubProber{}, nil, nil).Run(context.Background(), lint.Options{Project: projectNameConstant, Items: []string{"REQ-1"}})
	require.NoError(testInstance, withoutError)
	require.Empty(testInstance, withoutProject.Outcomes)

	withProject, withError := lint.NewService(repository, stubProber{}, nil, nil).Run(context.Background(), lint.Options{
		Project:                  projectNameConstant,
		Items:                    []string{"REQ-1"},
		IncludeProjectCategories: true,
	})
	require.NoError(testInstance, withError)
	require.Len(testInstance, withProject.Outcomes, 2)
	require.Equal(testInstance, references.StatusValid, withProject.Outcomes[0].Status)
	require.Equal(testInstance, references.StatusNotFound, withProject.Outcomes[1].Status)
}

func TestServiceLintItem(testInstance *testing.T) {
	index := references.NewIndex([]tree.LeafItem{{ReferenceID: "REQ-1", Title: "One"}, {ReferenceID: "REQ-2", Title: "Two"}})
	target := lint.Target{Project: projectNameConstant, Index: index, Scanner: richtext.NewDefaultScanner()}

	testCases := []struct {
		name               string
		item               tree.LeafItem
		detail             matrix.Item
		fetchError         error
		expectedReferences []string
		expectError        bool
		expectFetch        bool
	}{
		{
			name:        "container_skipped",
			item:        tree.LeafItem{ReferenceID: "F-REQ-1", Title: "Folder", IsContainer: true},
			expectFetch: false,
		},
		{
			name:        "missing_reference_skipped",
			item:        tree.LeafItem{Title: "Anonymous"},
			expectFetch: false,
		},
		{
			name:        "folder_detail_skipped",
			item:        tree.LeafItem{ReferenceID: "REQ-1", Title: "One"},
			detail:      matrix.Item{ReferenceID: "REQ-1", IsFolder: true, Fields: richTextItem("REQ-1", "<p>REQ-2</p>").Fields},
			expectFetch: true,
		},
		{
			name:        "fetch_failure",
			item:        tree.LeafItem{ReferenceID: "REQ-1", Title: "One"},
			fetchError:  errors.New("timeout"),
			expectError: true,
			expectFetch: true,
		},
		{
			name: "mixed_fields",
			item: tree.LeafItem{ReferenceID: "REQ-1", Title: "One"},
			detail: matrix.Item{ReferenceID: "REQ-1", Fields: []matrix.Field{
				{Name: "Broken", Type: "dhf", Value: `{"type": "richtext", `},
				{Name: "Plain", Type: "text", Value: "<p>REQ-2</p>"},
				{Name: "Wrapped", Type: "dhf", Value: `{"type": "richtext", "fieldValue": "<p>REQ-2 and REQ-3</p>"}`},
				{Name: "Body", Type: "richtext", Value: `<p>REQ-1 <a href="https://docs.example.com">docs</a><img src="https://cdn.example.com/ok.png"></p>`},
			}},
			expectedReferences: []string{"REQ-2", "REQ-3", "https://cdn.example.com/ok.png", "https://docs.example.com", "REQ-1"},
			expectFetch:        true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(serviceSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subtest *testing.T) {
			repository := &stubRepository{items: map[string]matrix.Item{}, itemErrors: map[string]error{}}
			if testCase.fetchError != nil {
				repository.itemErrors[testCase.item.ReferenceID] = testCase.fetchError
			} else if len(testCase.item.ReferenceID) > 0 {
				repository.items[testCase.item.ReferenceID] = testCase.detail
			}

			service := lint.NewService(repository, stubProber{statuses: map[string]references.Status{
				"https://cdn.example.com/ok.png": references.StatusValid,
				"https://docs.example.com":       references.StatusNotFound,
			}}, nil, nil)

			outcomes, lintError := service.LintItem(context.Background(), target, testCase.item)
			require.Equal(subtest, testCase.expectFetch, len(repository.requested) > 0)
			if testCase.expectError {
				require.Error(subtest, lintError)
				require.Nil(subtest, outcomes)
				return
			}
			require.NoError(subtest, lintError)

			var actualReferences []string
			for _, outcome := range outcomes {
				actualReferences = append(actualReferences, outcome.Reference)
			}
			require.Equal(subtest, testCase.expectedReferences, actualReferences)
		})
	}
}

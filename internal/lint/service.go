package lint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Byteflies/matrix-qms-github-actions/internal/matrix"
	"github.com/Byteflies/matrix-qms-github-actions/internal/references"
	"github.com/Byteflies/matrix-qms-github-actions/internal/richtext"
	"github.com/Byteflies/matrix-qms-github-actions/internal/tree"
)

const (
	projectMissingMessageConstant        = "project must be provided"
	projectFetchErrorTemplateConstant    = "unable to fetch project %s: %w"
	treeFetchErrorTemplateConstant       = "unable to fetch tree of project %s: %w"
	treeFlattenErrorTemplateConstant     = "unable to flatten tree of project %s: %w"
	categoriesErrorTemplateConstant      = "invalid reference categories: %w"
	itemFetchErrorTemplateConstant       = "unable to fetch item %s: %w"
	itemNotInTreeMessageConstant         = "item is not part of the project tree"
	previewLengthConstant                = 120
	logMessageRunStartedConstant         = "lint started"
	logMessageRunCompletedConstant       = "lint completed"
	logMessageDuplicateReferenceConstant = "duplicate reference identifier in tree, keeping first occurrence"
	logMessageIgnoredCategoryConstant    = "ignoring project category that cannot form references"
	logMessageItemSkippedConstant        = "item skipped"
	logMessageItemFailedConstant         = "item lint abandoned"
	logMessageEnvelopeMalformedConstant  = "field skipped: malformed dhf envelope"
	logMessageFieldScannedConstant       = "field scanned"
	logMessageFieldEmptyConstant         = "field has no references"
	logFieldImageCountConstant           = "images"
	logFieldAnchorCountConstant          = "anchors"
	logFieldItemReferenceCountConstant   = "item_references"
	logMessageReferenceFailedConstant    = "reference did not resolve"
	logMessageReferenceValidConstant     = "reference resolved"
	logFieldProjectConstant              = "project"
	logFieldItemConstant                 = "item"
	logFieldFieldConstant                = "field"
	logFieldFieldTypeConstant            = "field_type"
	logFieldKindConstant                 = "kind"
	logFieldReferenceConstant            = "reference"
	logFieldStatusConstant               = "status"
	logFieldStatusCodeConstant           = "status_code"
	logFieldDetailConstant               = "detail"
	logFieldPreviewConstant              = "preview"
	logFieldItemCountConstant            = "items"
	logFieldOutcomeCountConstant         = "outcomes"
	logFieldFailureCountConstant         = "failures"
	logFieldParallelismConstant          = "parallelism"
	logFieldCategoryConstant             = "category"
	logFieldCategoriesConstant           = "categories"
	logFieldReasonConstant               = "reason"
	skipReasonContainerConstant          = "container"
	skipReasonMissingReferenceConstant   = "missing reference identifier"
	skipReasonFolderDetailConstant       = "folder"
)

// ErrProjectMissing indicates a run without a project.
var ErrProjectMissing = errors.New(projectMissingMessageConstant)

// RepositoryClient is the subset of the repository API the linter reads.
type RepositoryClient interface {
	GetProject(executionContext context.Context, project string) (matrix.Project, error)
	GetTree(executionContext context.Context, project string) (tree.Node, error)
	GetItem(executionContext context.Context, project string, referenceID string) (matrix.Item, error)
}

// URLProber classifies URLs found in rich text.
type URLProber interface {
	Probe(executionContext context.Context, rawURL string) references.ProbeResult
}

// Service lints projects.
type Service struct {
	client   RepositoryClient
	prober   URLProber
	logger   *zap.Logger
	observer OutcomeObserver
}

// NewService constructs a Service. logger and observer may be nil.
func NewService(client RepositoryClient, prober URLProber, logger *zap.Logger, observer OutcomeObserver) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, prober: prober, logger: logger, observer: observer}
}

type itemResult struct {
	outcomes []Outcome
	failure  error
	linted   bool
}

// Run fetches the project and its tree once, then lints every selected leaf.
// Only project, tree and configuration failures are returned as errors; item
// failures are recorded in the report.
func (service *Service) Run(executionContext context.Context, options Options) (Report, error) {
	projectName := strings.TrimSpace(options.Project)
	if len(projectName) == 0 {
		return Report{}, ErrProjectMissing
	}

	project, projectError := service.client.GetProject(executionContext, projectName)
	if projectError != nil {
		return Report{}, fmt.Errorf(projectFetchErrorTemplateConstant, projectName, projectError)
	}

	scanner, scannerError := service.buildScanner(options, project)
	if scannerError != nil {
		return Report{}, scannerError
	}

	root, treeError := service.client.GetTree(executionContext, projectName)
	if treeError != nil {
		return Report{}, fmt.Errorf(treeFetchErrorTemplateConstant, projectName, treeError)
	}

	items, flattenError := tree.Flatten(root)
	if flattenError != nil {
		return Report{}, fmt.Errorf(treeFlattenErrorTemplateConstant, projectName, flattenError)
	}

	index := references.NewIndex(items)
	duplicates := index.Duplicates()
	for _, duplicate := range duplicates {
		service.logger.Warn(logMessageDuplicateReferenceConstant, zap.String(logFieldProjectConstant, projectName), zap.String(logFieldItemConstant, duplicate))
	}

	selectedItems, missingItems := selectItems(items, options.Items)
	target := Target{Project: projectName, Index: index, Scanner: scanner}

	parallelism := options.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	service.logger.Info(
		logMessageRunStartedConstant,
		zap.String(logFieldProjectConstant, projectName),
		zap.Int(logFieldItemCountConstant, len(selectedItems)),
		zap.Int(logFieldParallelismConstant, parallelism),
		zap.Strings(logFieldCategoriesConstant, scanner.Categories()),
	)

	results := service.lintItems(executionContext, target, selectedItems, parallelism)

	report := Report{Project: projectName, Duplicates: duplicates}
	for itemIndex, result := range results {
		if result.failure != nil {
			report.ItemErrors = append(report.ItemErrors, ItemError{Item: selectedItems[itemIndex].ReferenceID, Message: result.failure.Error()})
			continue
		}
		if result.linted {
			report.Items++
		}
		report.Outcomes = append(report.Outcomes, result.outcomes...)
	}
	for _, missingItem := range missingItems {
		report.ItemErrors = append(report.ItemErrors, ItemError{Item: missingItem, Message: itemNotInTreeMessageConstant})
	}

	summary := report.Summary()
	service.logger.Info(
		logMessageRunCompletedConstant,
		zap.String(logFieldProjectConstant, projectName),
		zap.Int(logFieldItemCountConstant, summary.Items),
		zap.Int(logFieldOutcomeCountConstant, summary.Outcomes),
		zap.Int(logFieldFailureCountConstant, summary.Failures()),
	)

	return report, nil
}

func (service *Service) lintItems(executionContext context.Context, target Target, items []tree.LeafItem, parallelism int) []itemResult {
	results := make([]itemResult, len(items))
	if parallelism == 1 {
		for itemIndex, item := range items {
			results[itemIndex] = service.lintAndNotify(executionContext, target, item)
		}
		return results
	}

	var group errgroup.Group
	group.SetLimit(parallelism)
	for itemIndex, item := range items {
		group.Go(func() error {
			results[itemIndex] = service.lintAndNotify(executionContext, target, item)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (service *Service) lintAndNotify(executionContext context.Context, target Target, item tree.LeafItem) itemResult {
	if reason, skipped := skipReason(item); skipped {
		service.logger.Debug(logMessageItemSkippedConstant, zap.String(logFieldItemConstant, item.ReferenceID), zap.String(logFieldReasonConstant, reason))
		return itemResult{}
	}

	outcomes, lintError := service.LintItem(executionContext, target, item)
	if lintError != nil {
		service.logger.Error(logMessageItemFailedConstant, zap.String(logFieldItemConstant, item.ReferenceID), zap.Error(lintError))
		if service.observer != nil {
			service.observer.ItemFailed(item, lintError)
		}
		return itemResult{failure: lintError}
	}

	if service.observer != nil {
		service.observer.ItemLinted(item, outcomes)
	}
	return itemResult{outcomes: outcomes, linted: true}
}

// LintItem validates every reference in the rich-text fields of one leaf.
// Containers and leaves without a reference identifier yield no outcomes. A
// fetch failure abandons the item and yields no partial outcomes.
func (service *Service) LintItem(executionContext context.Context, target Target, item tree.LeafItem) ([]Outcome, error) {
	if _, skipped := skipReason(item); skipped {
		return nil, nil
	}
	referenceID := strings.TrimSpace(item.ReferenceID)

	detail, fetchError := service.client.GetItem(executionContext, target.Project, referenceID)
	if fetchError != nil {
		return nil, fmt.Errorf(itemFetchErrorTemplateConstant, referenceID, fetchError)
	}
	if detail.IsFolder {
		service.logger.Debug(logMessageItemSkippedConstant, zap.String(logFieldItemConstant, referenceID), zap.String(logFieldReasonConstant, skipReasonFolderDetailConstant))
		return nil, nil
	}

	scanner := target.Scanner
	if scanner == nil {
		scanner = richtext.NewDefaultScanner()
	}

	subject := Outcome{Project: target.Project, Item: referenceID, ItemTitle: item.Title}

	var outcomes []Outcome
	for _, field := range detail.Fields {
		fragment, extracted, unwrapError := richtext.Unwrap(richtext.FieldType(field.Type), field.Value)
		if unwrapError != nil {
			service.logger.Warn(
				logMessageEnvelopeMalformedConstant,
				zap.String(logFieldItemConstant, referenceID),
				zap.String(logFieldFieldConstant, field.Name),
				zap.Error(unwrapError),
			)
			continue
		}
		if !extracted {
			continue
		}

		scanResult := scanner.Scan(fragment)
		if scanResult.Empty() {
			service.logger.Debug(logMessageFieldEmptyConstant, zap.String(logFieldItemConstant, referenceID), zap.String(logFieldFieldConstant, field.Name))
			continue
		}
		service.logger.Debug(
			logMessageFieldScannedConstant,
			zap.String(logFieldItemConstant, referenceID),
			zap.String(logFieldFieldConstant, field.Name),
			zap.String(logFieldFieldTypeConstant, field.Type),
			zap.Int(logFieldImageCountConstant, len(scanResult.Images)),
			zap.Int(logFieldAnchorCountConstant, len(scanResult.Anchors)),
			zap.Int(logFieldItemReferenceCountConstant, len(scanResult.ItemReferences)),
			zap.String(logFieldPreviewConstant, richtext.Preview(fragment, previewLengthConstant)),
		)

		fieldSubject := subject
		fieldSubject.Field = field.Name

		for _, source := range scanResult.Images {
			outcomes = append(outcomes, service.recordOutcome(service.probeOutcome(executionContext, fieldSubject, richtext.ReferenceKindImage, source)))
		}
		for _, anchorTarget := range scanResult.Anchors {
			outcomes = append(outcomes, service.recordOutcome(service.probeOutcome(executionContext, fieldSubject, richtext.ReferenceKindAnchor, anchorTarget)))
		}
		for _, token := range scanResult.ItemReferences {
			outcome := fieldSubject
			outcome.Kind = richtext.ReferenceKindItemReference
			outcome.Reference = token
			outcome.Status = target.Index.Validate(token)
			outcomes = append(outcomes, service.recordOutcome(outcome))
		}
	}

	return outcomes, nil
}

func (service *Service) probeOutcome(executionContext context.Context, subject Outcome, kind richtext.ReferenceKind, rawURL string) Outcome {
	outcome := subject
	outcome.Kind = kind
	outcome.Reference = rawURL

	result := service.prober.Probe(executionContext, rawURL)
	outcome.Status = result.Status
	outcome.StatusCode = result.StatusCode
	outcome.Internal = result.Internal
	outcome.Detail = result.Detail()
	return outcome
}

func (service *Service) recordOutcome(outcome Outcome) Outcome {
	fields := []zap.Field{
		zap.String(logFieldProjectConstant, outcome.Project),
		zap.String(logFieldItemConstant, outcome.Item),
		zap.String(logFieldFieldConstant, outcome.Field),
		zap.String(logFieldKindConstant, string(outcome.Kind)),
		zap.String(logFieldReferenceConstant, outcome.Reference),
		zap.String(logFieldStatusConstant, outcome.Status.String()),
	}
	if outcome.StatusCode != 0 {
		fields = append(fields, zap.Int(logFieldStatusCodeConstant, outcome.StatusCode))
	}
	if len(outcome.Detail) > 0 {
		fields = append(fields, zap.String(logFieldDetailConstant, outcome.Detail))
	}

	if outcome.Failed() {
		service.logger.Warn(logMessageReferenceFailedConstant, fields...)
	} else {
		service.logger.Debug(logMessageReferenceValidConstant, fields...)
	}
	return outcome
}

func (service *Service) buildScanner(options Options, project matrix.Project) (*richtext.Scanner, error) {
	categories := append([]string{}, options.Categories...)
	if len(categories) == 0 {
		categories = richtext.DefaultCategories()
	}

	if options.IncludeProjectCategories {
		for _, category := range project.Categories {
			if !richtext.ValidCategory(category) {
				service.logger.Debug(logMessageIgnoredCategoryConstant, zap.String(logFieldCategoryConstant, category))
				continue
			}
			categories = append(categories, category)
		}
	}

	pattern, patternError := richtext.NewReferencePattern(categories)
	if patternError != nil {
		return nil, fmt.Errorf(categoriesErrorTemplateConstant, patternError)
	}
	return richtext.NewScanner(pattern), nil
}

func skipReason(item tree.LeafItem) (string, bool) {
	if len(strings.TrimSpace(item.ReferenceID)) == 0 {
		return skipReasonMissingReferenceConstant, true
	}
	if item.IsContainer {
		return skipReasonContainerConstant, true
	}
	return "", false
}

// selectItems keeps the items named in filter, in tree order. Filter entries
// absent from the tree are returned separately.
func selectItems(items []tree.LeafItem, filter []string) ([]tree.LeafItem, []string) {
	requested := make(map[string]struct{}, len(filter))
	var requestedOrder []string
	for _, entry := range filter {
		trimmedEntry := strings.TrimSpace(entry)
		if len(trimmedEntry) == 0 {
			continue
		}
		if _, seen := requested[trimmedEntry]; seen {
			continue
		}
		requested[trimmedEntry] = struct{}{}
		requestedOrder = append(requestedOrder, trimmedEntry)
	}
	if len(requested) == 0 {
		return items, nil
	}

	selected := make([]tree.LeafItem, 0, len(requested))
	found := make(map[string]struct{}, len(requested))
	for _, item := range items {
		referenceID := strings.TrimSpace(item.ReferenceID)
		if _, wanted := requested[referenceID]; !wanted {
			continue
		}
		if _, already := found[referenceID]; already {
			continue
		}
		found[referenceID] = struct{}{}
		selected = append(selected, item)
	}

	var missing []string
	for _, entry := range requestedOrder {
		if _, present := found[entry]; !present {
			missing = append(missing, entry)
		}
	}
	return selected, missing
}

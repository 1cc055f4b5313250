package lint

import (
	"errors"

	"github.com/Byteflies/matrix-qms-github-actions/internal/references"
	"github.com/Byteflies/matrix-qms-github-actions/internal/richtext"
	"github.com/Byteflies/matrix-qms-github-actions/internal/tree"
)

const lintFailedMessageConstant = "lint found unresolved references"

// ErrLintFailed is returned by the lint command when a reference did not
// resolve or an item could not be fetched.
var ErrLintFailed = errors.New(lintFailedMessageConstant)

// Outcome is the validation result of one reference found in one field.
type Outcome struct {
	Project    string                 `json:"project" yaml:"project"`
	Item       string                 `json:"item" yaml:"item"`
	ItemTitle  string                 `json:"itemTitle" yaml:"item_title"`
	Field      string                 `json:"field" yaml:"field"`
	Kind       richtext.ReferenceKind `json:"kind" yaml:"kind"`
	Reference  string                 `json:"reference" yaml:"reference"`
	Status     references.Status      `json:"status" yaml:"status"`
	StatusCode int                    `json:"statusCode,omitempty" yaml:"status_code,omitempty"`
	Internal   bool                   `json:"internal,omitempty" yaml:"internal,omitempty"`
	Detail     string                 `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Failed reports whether the outcome fails the run.
func (outcome Outcome) Failed() bool {
	return outcome.Status.Failed()
}

// ItemError records an item whose lint was abandoned.
type ItemError struct {
	Item    string `json:"item" yaml:"item"`
	Message string `json:"message" yaml:"message"`
}

// Report aggregates one run.
type Report struct {
	Project    string      `json:"project" yaml:"project"`
	Items      int         `json:"items" yaml:"items"`
	Outcomes   []Outcome   `json:"outcomes" yaml:"outcomes"`
	ItemErrors []ItemError `json:"itemErrors,omitempty" yaml:"item_errors,omitempty"`
	Duplicates []string    `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// Summary counts report entries by status.
type Summary struct {
	Items       int `json:"items" yaml:"items"`
	Outcomes    int `json:"outcomes" yaml:"outcomes"`
	Valid       int `json:"valid" yaml:"valid"`
	NotFound    int `json:"notFound" yaml:"not_found"`
	Unreachable int `json:"unreachable" yaml:"unreachable"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	ItemErrors  int `json:"itemErrors" yaml:"item_errors"`
}

// Failures returns the number of entries that fail the run.
func (summary Summary) Failures() int {
	return summary.NotFound + summary.Unreachable + summary.ItemErrors
}

// Summary counts the report entries.
func (report Report) Summary() Summary {
	summary := Summary{Items: report.Items, Outcomes: len(report.Outcomes), ItemErrors: len(report.ItemErrors)}
	for _, outcome := range report.Outcomes {
		switch outcome.Status {
		case references.StatusValid:
			summary.Valid++
		case references.StatusNotFound:
			summary.NotFound++
		case references.StatusUnreachable:
			summary.Unreachable++
		case references.StatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}

// Failed reports whether the run produced any failure.
func (report Report) Failed() bool {
	return report.Summary().Failures() > 0
}

// Options configure one run.
type Options struct {
	Project                  string
	Items                    []string
	Categories               []string
	IncludeProjectCategories bool
	Parallelism              int
}

// Target is the per-run state shared read-only by every item lint.
type Target struct {
	Project string
	Index   references.Index
	Scanner *richtext.Scanner
}

// OutcomeObserver is notified as items finish. Implementations must be safe
// for concurrent use when the run is parallel.
type OutcomeObserver interface {
	ItemLinted(item tree.LeafItem, outcomes []Outcome)
	ItemFailed(item tree.LeafItem, failure error)
}

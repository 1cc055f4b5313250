package ui

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Byteflies/matrix-qms-github-actions/internal/lint"
	"github.com/Byteflies/matrix-qms-github-actions/internal/tree"
)

const (
	itemResolvedMessageTemplateConstant       = "Checked %s: %d references resolved"
	itemUnresolvedMessageTemplateConstant     = "Checked %s: %d of %d references failed: %s"
	itemFailureMessageTemplateConstant        = "Could not check %s: %s"
	itemLabelTemplateConstant                 = "%s (%s)"
	failedReferenceTemplateConstant           = "%s [%s]"
	failedReferenceWithDetailTemplateConstant = "%s [%s: %s]"
	failedReferenceSeparatorConstant          = ", "
	unknownFailureMessageConstant             = "unknown error"
)

// OutcomeFormatter builds human-readable messages for item lint events.
type OutcomeFormatter struct{}

// BuildItemMessage summarizes the outcomes of one item. The boolean is true
// when at least one reference failed.
func (formatter OutcomeFormatter) BuildItemMessage(item tree.LeafItem, outcomes []lint.Outcome) (string, bool) {
	var failures []string
	for _, outcome := range outcomes {
		if !outcome.Failed() {
			continue
		}
		failures = append(failures, formatter.formatFailedReference(outcome))
	}

	itemLabel := formatter.formatItemLabel(item)
	if len(failures) == 0 {
		return fmt.Sprintf(itemResolvedMessageTemplateConstant, itemLabel, len(outcomes)), false
	}
	return fmt.Sprintf(itemUnresolvedMessageTemplateConstant, itemLabel, len(failures), len(outcomes), strings.Join(failures, failedReferenceSeparatorConstant)), true
}

// BuildItemFailureMessage describes an item whose lint was abandoned.
func (formatter OutcomeFormatter) BuildItemFailureMessage(item tree.LeafItem, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(itemFailureMessageTemplateConstant, formatter.formatItemLabel(item), failureMessage)
}

func (formatter OutcomeFormatter) formatItemLabel(item tree.LeafItem) string {
	trimmedTitle := strings.TrimSpace(item.Title)
	if len(trimmedTitle) == 0 {
		return item.ReferenceID
	}
	return fmt.Sprintf(itemLabelTemplateConstant, item.ReferenceID, trimmedTitle)
}

func (formatter OutcomeFormatter) formatFailedReference(outcome lint.Outcome) string {
	trimmedDetail := strings.TrimSpace(outcome.Detail)
	if len(trimmedDetail) == 0 {
		return fmt.Sprintf(failedReferenceTemplateConstant, outcome.Reference, outcome.Status)
	}
	return fmt.Sprintf(failedReferenceWithDetailTemplateConstant, outcome.Reference, outcome.Status, trimmedDetail)
}

// ConsoleOutcomeLogger renders item lint events using a zap logger configured for human-readable output.
type ConsoleOutcomeLogger struct {
	logger    *zap.Logger
	formatter OutcomeFormatter
}

// NewConsoleOutcomeLogger constructs a console outcome logger backed by the provided zap logger.
func NewConsoleOutcomeLogger(logger *zap.Logger) *ConsoleOutcomeLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleOutcomeLogger{logger: logger, formatter: OutcomeFormatter{}}
}

// ItemLinted implements lint.OutcomeObserver.
func (outcomeLogger *ConsoleOutcomeLogger) ItemLinted(item tree.LeafItem, outcomes []lint.Outcome) {
	if outcomeLogger == nil {
		return
	}
	message, failed := outcomeLogger.formatter.BuildItemMessage(item, outcomes)
	if failed {
		outcomeLogger.logger.Warn(message)
		return
	}
	outcomeLogger.logger.Info(message)
}

// ItemFailed implements lint.OutcomeObserver.
func (outcomeLogger *ConsoleOutcomeLogger) ItemFailed(item tree.LeafItem, failure error) {
	if outcomeLogger == nil {
		return
	}
	outcomeLogger.logger.Error(outcomeLogger.formatter.BuildItemFailureMessage(item, failure))
}

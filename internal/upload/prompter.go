package upload

import (
	"context"
	"errors"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ConfirmationPrompter collects a yes/no answer before the repository is modified.
type ConfirmationPrompter interface {
	Confirm(executionContext context.Context, message string) (bool, error)
}

// SurveyConfirmationPrompter asks through an interactive survey confirm prompt.
type SurveyConfirmationPrompter struct {
	askOptions []survey.AskOpt
}

// NewSurveyConfirmationPrompter binds the prompt to input and output when they
// are terminal files; otherwise survey falls back to the process stdio.
func NewSurveyConfirmationPrompter(input io.Reader, output io.Writer, errorOutput io.Writer) *SurveyConfirmationPrompter {
	prompter := &SurveyConfirmationPrompter{}
	fileInput, inputIsFile := input.(terminal.FileReader)
	fileOutput, outputIsFile := output.(terminal.FileWriter)
	if inputIsFile && outputIsFile {
		prompter.askOptions = append(prompter.askOptions, survey.WithStdio(fileInput, fileOutput, errorOutput))
	}
	return prompter
}

// Confirm asks message and defaults to no. An interrupted prompt counts as a refusal.
func (prompter *SurveyConfirmationPrompter) Confirm(executionContext context.Context, message string) (bool, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return false, contextError
	}

	var confirmed bool
	prompt := &survey.Confirm{Message: message, Default: false}
	if askError := survey.AskOne(prompt, &confirmed, prompter.askOptions...); askError != nil {
		if errors.Is(askError, terminal.InterruptErr) {
			return false, nil
		}
		return false, askError
	}
	return confirmed, nil
}

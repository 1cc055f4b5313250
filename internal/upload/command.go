package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Byteflies/matrix-qms-github-actions/internal/matrix"
	"github.com/Byteflies/matrix-qms-github-actions/internal/utils/flags"
)

const (
	commandUseConstant                 = "upload"
	commandShortDescriptionConstant    = "Upload a file and attach it to an item field"
	commandLongDescriptionConstant     = "upload stores a local file in the project and replaces the value of an fxNNN file field of an item with a reference to it."
	itemFlagNameConstant               = "item"
	itemFlagDescriptionConstant        = "Reference of the item to update (for example REQ-42)."
	fieldFlagNameConstant              = "field"
	fieldFlagDescriptionConstant       = "Identifier of the file field to replace (fxNNN)."
	fileFlagNameConstant               = "file"
	fileFlagDescriptionConstant        = "Path of the local file to upload."
	fileNameFlagNameConstant           = "file-name"
	fileNameFlagDescriptionConstant    = "Name shown in the field (defaults to the base name of --file)."
	reasonFlagNameConstant             = "reason"
	reasonFlagDescriptionConstant      = "Change reason recorded by the repository."
	assumeYesFlagNameConstant          = "yes"
	assumeYesFlagShorthandConstant     = "y"
	assumeYesFlagDescriptionConstant   = "Attach without asking for confirmation."
	filePathMissingMessageConstant     = "file path must be provided"
	fileOpenErrorTemplateConstant      = "unable to open %s: %w"
	repositoryErrorTemplateConstant    = "unable to connect to repository: %w"
	confirmationErrorTemplateConstant  = "unable to confirm upload: %w"
	confirmationPromptTemplateConstant = "Upload %s and replace field %s of %s/%s?"
	declinedMessageTemplateConstant    = "Upload of %s cancelled\n"
	attachedMessageTemplateConstant    = "Attached %s to %s field %s (file %d)\n"
)

// ErrFilePathMissing indicates the upload command was invoked without --file.
var ErrFilePathMissing = errors.New(filePathMissingMessageConstant)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current upload configuration.
type ConfigurationProvider func() CommandConfiguration

// RepositoryConfigurationProvider returns the repository connection settings.
type RepositoryConfigurationProvider func() matrix.RepositoryConfiguration

// PrompterFactory creates confirmation prompters scoped to a Cobra command.
type PrompterFactory func(*cobra.Command) ConfirmationPrompter

// CommandBuilder assembles the upload cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider                  LoggerProvider
	ConfigurationProvider           ConfigurationProvider
	RepositoryConfigurationProvider RepositoryConfigurationProvider
	PrompterFactory                 PrompterFactory
	HTTPClient                      matrix.HTTPClient
	TokenResolver                   *matrix.TokenResolver
}

// Build constructs the upload command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(itemFlagNameConstant, "", itemFlagDescriptionConstant)
	command.Flags().String(fieldFlagNameConstant, "", fieldFlagDescriptionConstant)
	command.Flags().String(fileFlagNameConstant, "", fileFlagDescriptionConstant)
	command.Flags().String(fileNameFlagNameConstant, "", fileNameFlagDescriptionConstant)
	command.Flags().String(reasonFlagNameConstant, "", reasonFlagDescriptionConstant)
	flags.AddToggleFlag(command.Flags(), nil, assumeYesFlagNameConstant, assumeYesFlagShorthandConstant, false, assumeYesFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	repositoryConfiguration := builder.resolveRepositoryConfiguration()

	itemValue, _ := command.Flags().GetString(itemFlagNameConstant)
	fieldValue, _ := command.Flags().GetString(fieldFlagNameConstant)
	filePathValue, _ := command.Flags().GetString(fileFlagNameConstant)
	fileNameValue, _ := command.Flags().GetString(fileNameFlagNameConstant)
	reasonValue, _ := command.Flags().GetString(reasonFlagNameConstant)

	assumeYes := configuration.AssumeYes
	if command.Flags().Changed(assumeYesFlagNameConstant) {
		assumeYes, _ = command.Flags().GetBool(assumeYesFlagNameConstant)
	}

	filePath := strings.TrimSpace(filePathValue)
	if len(filePath) == 0 {
		return ErrFilePathMissing
	}

	options := Options{
		Project:  repositoryConfiguration.Project,
		Item:     itemValue,
		FieldID:  fieldValue,
		FileName: selectStringValue(fileNameValue, filepath.Base(filePath)),
		Reason:   selectStringValue(reasonValue, configuration.Reason),
	}
	if validationError := options.Validate(); validationError != nil {
		return validationError
	}

	if ConfirmationPolicyFromBool(assumeYes).ShouldPrompt() {
		prompter := builder.resolvePrompter(command)
		message := fmt.Sprintf(confirmationPromptTemplateConstant, options.FileName, options.FieldID, options.Project, options.Item)
		confirmed, confirmError := prompter.Confirm(command.Context(), message)
		if confirmError != nil {
			return fmt.Errorf(confirmationErrorTemplateConstant, confirmError)
		}
		if !confirmed {
			fmt.Fprintf(command.OutOrStdout(), declinedMessageTemplateConstant, options.FileName)
			return nil
		}
	}

	file, openError := os.Open(filePath)
	if openError != nil {
		return fmt.Errorf(fileOpenErrorTemplateConstant, filePath, openError)
	}
	defer file.Close()

	client, clientError := matrix.Connect(builder.HTTPClient, repositoryConfiguration, builder.TokenResolver)
	if clientError != nil {
		return fmt.Errorf(repositoryErrorTemplateConstant, clientError)
	}

	result, attachError := NewService(client, builder.resolveLogger()).Attach(command.Context(), options, file)
	if attachError != nil {
		return attachError
	}

	fmt.Fprintf(command.OutOrStdout(), attachedMessageTemplateConstant, options.FileName, strings.TrimSpace(options.Item), strings.TrimSpace(options.FieldID), result.File.FileID)
	return nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveRepositoryConfiguration() matrix.RepositoryConfiguration {
	configuration := matrix.DefaultRepositoryConfiguration()
	if builder.RepositoryConfigurationProvider != nil {
		configuration = builder.RepositoryConfigurationProvider()
	}
	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolvePrompter(command *cobra.Command) ConfirmationPrompter {
	if builder.PrompterFactory != nil {
		if prompter := builder.PrompterFactory(command); prompter != nil {
			return prompter
		}
	}
	return NewSurveyConfirmationPrompter(command.InOrStdin(), command.OutOrStdout(), command.ErrOrStderr())
}

func selectStringValue(flagValue string, fallbackValue string) string {
	trimmedFlagValue := strings.TrimSpace(flagValue)
	if len(trimmedFlagValue) > 0 {
		return trimmedFlagValue
	}
	return strings.TrimSpace(fallbackValue)
}

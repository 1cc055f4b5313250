package lint

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Byteflies/matrix-qms-github-actions/internal/matrix"
	"github.com/Byteflies/matrix-qms-github-actions/internal/references"
	"github.com/Byteflies/matrix-qms-github-actions/internal/utils/flags"
)

const (
	commandUseConstant                       = "lint [ITEM...]"
	commandShortDescriptionConstant          = "Validate links, images and item references in rich-text fields"
	commandLongDescriptionConstant           = "lint flattens the project tree, scans the rich-text fields of every leaf item (or only the listed items), probes every image and link, and checks every inline item reference against the tree. It exits with an error when a reference does not resolve."
	formatFlagNameConstant                   = "format"
	formatFlagDescriptionConstant            = "Report format."
	parallelismFlagNameConstant              = "parallelism"
	parallelismFlagDescriptionConstant       = "Number of items linted concurrently."
	categoryFlagNameConstant                 = "category"
	categoryFlagDescriptionConstant          = "Item category recognized in inline references (repeatable, replaces the configured set)."
	projectCategoriesFlagNameConstant        = "include-project-categories"
	projectCategoriesFlagDescriptionConstant = "Also recognize the categories defined by the project."
	probeTimeoutFlagNameConstant             = "probe-timeout"
	probeTimeoutFlagDescriptionConstant      = "Timeout for a single URL probe."
	repositoryErrorTemplateConstant          = "unable to connect to repository: %w"
	proberErrorTemplateConstant              = "unable to configure url prober: %w"
	runErrorTemplateConstant                 = "lint failed: %w"
	reportErrorTemplateConstant              = "unable to write report: %w"
	formatErrorTemplateConstant              = "invalid report format: %w"
)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current lint configuration.
type ConfigurationProvider func() CommandConfiguration

// RepositoryConfigurationProvider returns the current repository configuration.
type RepositoryConfigurationProvider func() matrix.RepositoryConfiguration

// OutcomeObserverProvider returns the observer for a run, or nil.
type OutcomeObserverProvider func() OutcomeObserver

// CommandBuilder assembles the lint cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider                  LoggerProvider
	ConfigurationProvider           ConfigurationProvider
	RepositoryConfigurationProvider RepositoryConfigurationProvider
	OutcomeObserverProvider         OutcomeObserverProvider
	HTTPClient                      matrix.HTTPClient
	TokenResolver                   *matrix.TokenResolver
}

// Build constructs the lint command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().String(formatFlagNameConstant, "", flags.FormatChoiceUsage(defaults.Format, FormatChoices(), formatFlagDescriptionConstant))
	command.Flags().Int(parallelismFlagNameConstant, 0, parallelismFlagDescriptionConstant)
	command.Flags().StringSlice(categoryFlagNameConstant, nil, categoryFlagDescriptionConstant)
	flags.AddToggleFlag(command.Flags(), nil, projectCategoriesFlagNameConstant, "", defaults.IncludeProjectCategories, projectCategoriesFlagDescriptionConstant)
	command.Flags().Duration(probeTimeoutFlagNameConstant, 0, probeTimeoutFlagDescriptionConstant)

	return command, nil
}

type commandOptions struct {
	run          Options
	format       Format
	probeTimeout time.Duration
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	repositoryConfiguration := builder.resolveRepositoryConfiguration()
	options, optionsError := builder.parseOptions(command, arguments, repositoryConfiguration)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()

	client, clientError := matrix.Connect(builder.HTTPClient, repositoryConfiguration, builder.TokenResolver)
	if clientError != nil {
		return fmt.Errorf(repositoryErrorTemplateConstant, clientError)
	}

	var proberHTTPClient references.HTTPClient
	if builder.HTTPClient != nil {
		proberHTTPClient = builder.HTTPClient
	}
	prober, proberError := references.NewProber(proberHTTPClient, references.ProberConfiguration{
		BaseURL: client.BaseURL(),
		Token:   client.Token(),
		Timeout: options.probeTimeout,
	})
	if proberError != nil {
		return fmt.Errorf(proberErrorTemplateConstant, proberError)
	}

	service := NewService(client, prober, logger, builder.resolveObserver())
	report, runError := service.Run(command.Context(), options.run)
	if runError != nil {
		return fmt.Errorf(runErrorTemplateConstant, runError)
	}

	if writeError := WriteReport(command.OutOrStdout(), report, options.format); writeError != nil {
		return fmt.Errorf(reportErrorTemplateConstant, writeError)
	}

	if report.Failed() {
		return ErrLintFailed
	}
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string, repositoryConfiguration matrix.RepositoryConfiguration) (commandOptions, error) {
	configuration := builder.resolveConfiguration()

	formatFlagValue, formatFlagError := command.Flags().GetString(formatFlagNameConstant)
	if formatFlagError != nil {
		return commandOptions{}, formatFlagError
	}
	format, formatError := ParseFormat(selectStringValue(formatFlagValue, configuration.Format))
	if formatError != nil {
		return commandOptions{}, fmt.Errorf(formatErrorTemplateConstant, formatError)
	}

	parallelism := configuration.Parallelism
	if command.Flags().Changed(parallelismFlagNameConstant) {
		parallelismFlagValue, parallelismFlagError := command.Flags().GetInt(parallelismFlagNameConstant)
		if parallelismFlagError != nil {
			return commandOptions{}, parallelismFlagError
		}
		parallelism = parallelismFlagValue
	}

	categories := configuration.Categories
	if command.Flags().Changed(categoryFlagNameConstant) {
		categoryFlagValues, categoryFlagError := command.Flags().GetStringSlice(categoryFlagNameConstant)
		if categoryFlagError != nil {
			return commandOptions{}, categoryFlagError
		}
		categories = categoryFlagValues
	}

	includeProjectCategories := configuration.IncludeProjectCategories
	if command.Flags().Changed(projectCategoriesFlagNameConstant) {
		toggleValue, toggleError := command.Flags().GetBool(projectCategoriesFlagNameConstant)
		if toggleError != nil {
			return commandOptions{}, toggleError
		}
		includeProjectCategories = toggleValue
	}

	probeTimeout := configuration.ProbeTimeout
	if command.Flags().Changed(probeTimeoutFlagNameConstant) {
		probeTimeoutFlagValue, probeTimeoutFlagError := command.Flags().GetDuration(probeTimeoutFlagNameConstant)
		if probeTimeoutFlagError != nil {
			return commandOptions{}, probeTimeoutFlagError
		}
		probeTimeout = probeTimeoutFlagValue
	}

	return commandOptions{
		run: Options{
			Project:                  repositoryConfiguration.Project,
			Items:                    append([]string{}, arguments...),
			Categories:               categories,
			IncludeProjectCategories: includeProjectCategories,
			Parallelism:              parallelism,
		},
		format:       format,
		probeTimeout: probeTimeout,
	}, nil
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

func (builder *CommandBuilder) resolveObserver() OutcomeObserver {
	if builder.OutcomeObserverProvider == nil {
		return nil
	}
	return builder.OutcomeObserverProvider()
}

func selectStringValue(flagValue string, configurationValue string) string {
	trimmedFlagValue := strings.TrimSpace(flagValue)
	if len(trimmedFlagValue) > 0 {
		return trimmedFlagValue
	}
	return strings.TrimSpace(configurationValue)
}

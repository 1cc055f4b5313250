package lint

import (
	"strings"
	"time"

	"github.com/Byteflies/matrix-qms-github-actions/internal/references"
	"github.com/Byteflies/matrix-qms-github-actions/internal/richtext"
)

const (
	configurationParallelismKeyConstant       = "parallelism"
	configurationCategoriesKeyConstant        = "categories"
	configurationProjectCategoriesKeyConstant = "include_project_categories"
	configurationFormatKeyConstant            = "format"
	configurationProbeTimeoutKeyConstant      = "probe_timeout"
	configurationKeySeparatorConstant         = "."
	defaultParallelismConstant                = 1
)

// CommandConfiguration captures persistent settings for the lint command.
type CommandConfiguration struct {
	Parallelism              int           `mapstructure:"parallelism"`
	Categories               []string      `mapstructure:"categories"`
	IncludeProjectCategories bool          `mapstructure:"include_project_categories"`
	Format                   string        `mapstructure:"format"`
	ProbeTimeout             time.Duration `mapstructure:"probe_timeout"`
}

// DefaultCommandConfiguration returns baseline lint settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Parallelism:              defaultParallelismConstant,
		Categories:               richtext.DefaultCategories(),
		IncludeProjectCategories: false,
		Format:                   string(FormatText),
		ProbeTimeout:             references.DefaultProbeTimeout,
	}
}

// DefaultConfigurationValues produces Viper defaults rooted at rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + configurationKeySeparatorConstant + configurationParallelismKeyConstant:       defaults.Parallelism,
		rootKey + configurationKeySeparatorConstant + configurationCategoriesKeyConstant:        defaults.Categories,
		rootKey + configurationKeySeparatorConstant + configurationProjectCategoriesKeyConstant: defaults.IncludeProjectCategories,
		rootKey + configurationKeySeparatorConstant + configurationFormatKeyConstant:            defaults.Format,
		rootKey + configurationKeySeparatorConstant + configurationProbeTimeoutKeyConstant:      defaults.ProbeTimeout.String(),
	}
}

// Sanitize trims values and restores defaults for unset fields.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	if sanitized.Parallelism < 1 {
		sanitized.Parallelism = defaultParallelismConstant
	}

	sanitized.Categories = make([]string, 0, len(configuration.Categories))
	for _, category := range configuration.Categories {
		trimmedCategory := strings.ToUpper(strings.TrimSpace(category))
		if len(trimmedCategory) == 0 {
			continue
		}
		sanitized.Categories = append(sanitized.Categories, trimmedCategory)
	}
	if len(sanitized.Categories) == 0 {
		sanitized.Categories = richtext.DefaultCategories()
	}

	sanitized.Format = strings.ToLower(strings.TrimSpace(configuration.Format))
	if len(sanitized.Format) == 0 {
		sanitized.Format = string(FormatText)
	}
	if sanitized.ProbeTimeout <= 0 {
		sanitized.ProbeTimeout = references.DefaultProbeTimeout
	}
	return sanitized
}

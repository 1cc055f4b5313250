package upload

import "strings"

const (
	configurationReasonKeyConstant    = "reason"
	configurationAssumeYesKeyConstant = "assume_yes"
	configurationKeySeparatorConstant = "."
	defaultReasonConstant             = "file uploaded by matrix-lint"
)

// CommandConfiguration captures persistent settings for the upload command.
type CommandConfiguration struct {
	Reason    string `mapstructure:"reason"`
	AssumeYes bool   `mapstructure:"assume_yes"`
}

// DefaultCommandConfiguration returns baseline upload settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Reason: defaultReasonConstant, AssumeYes: false}
}

// DefaultConfigurationValues produces Viper defaults rooted at rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + configurationKeySeparatorConstant + configurationReasonKeyConstant:    defaults.Reason,
		rootKey + configurationKeySeparatorConstant + configurationAssumeYesKeyConstant: defaults.AssumeYes,
	}
}

// Sanitize trims values and restores the default reason when unset.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Reason = strings.TrimSpace(configuration.Reason)
	if len(sanitized.Reason) == 0 {
		sanitized.Reason = defaultReasonConstant
	}
	return sanitized
}

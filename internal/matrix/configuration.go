package matrix

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	repositoryBaseURLKeyConstant         = "base_url"
	repositoryProjectKeyConstant         = "project"
	repositoryTokenSourceKeyConstant     = "token_source"
	repositoryTimeoutKeyConstant         = "timeout"
	configurationKeySeparatorConstant    = "."
	projectMissingMessageConstant        = "repository project must be provided"
	tokenResolutionErrorTemplateConstant = "unable to resolve repository token from %s: %w"
)

// ErrProjectMissing indicates no project was configured.
var ErrProjectMissing = errors.New(projectMissingMessageConstant)

// RepositoryConfiguration describes the MatrixALM instance and project a command works on.
type RepositoryConfiguration struct {
	BaseURL     string        `mapstructure:"base_url"`
	Project     string        `mapstructure:"project"`
	TokenSource string        `mapstructure:"token_source"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DefaultRepositoryConfiguration returns baseline repository settings.
func DefaultRepositoryConfiguration() RepositoryConfiguration {
	return RepositoryConfiguration{
		TokenSource: DefaultTokenSource,
		Timeout:     DefaultTimeout,
	}
}

// DefaultConfigurationValues produces Viper defaults rooted at rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultRepositoryConfiguration()
	return map[string]any{
		rootKey + configurationKeySeparatorConstant + repositoryBaseURLKeyConstant:     defaults.BaseURL,
		rootKey + configurationKeySeparatorConstant + repositoryProjectKeyConstant:     defaults.Project,
		rootKey + configurationKeySeparatorConstant + repositoryTokenSourceKeyConstant: defaults.TokenSource,
		rootKey + configurationKeySeparatorConstant + repositoryTimeoutKeyConstant:     defaults.Timeout.String(),
	}
}

// Sanitize trims values and restores defaults for unset fields.
func (configuration RepositoryConfiguration) Sanitize() RepositoryConfiguration {
	sanitized := configuration
	sanitized.BaseURL = strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	sanitized.Project = strings.TrimSpace(configuration.Project)
	sanitized.TokenSource = strings.TrimSpace(configuration.TokenSource)
	if len(sanitized.TokenSource) == 0 {
		sanitized.TokenSource = DefaultTokenSource
	}
	if sanitized.Timeout <= 0 {
		sanitized.Timeout = DefaultTimeout
	}
	return sanitized
}

// Validate reports missing mandatory settings.
func (configuration RepositoryConfiguration) Validate() error {
	sanitized := configuration.Sanitize()
	if len(sanitized.BaseURL) == 0 {
		return ErrBaseURLMissing
	}
	if len(sanitized.Project) == 0 {
		return ErrProjectMissing
	}
	return nil
}

// Connect resolves the token and constructs a client for configuration.
// A nil resolver reads from the process environment and file system.
func Connect(httpClient HTTPClient, configuration RepositoryConfiguration, resolver *TokenResolver) (*Client, error) {
	sanitized := configuration.Sanitize()
	if validationError := sanitized.Validate(); validationError != nil {
		return nil, validationError
	}

	if resolver == nil {
		resolver = NewTokenResolver(nil, nil)
	}
	token, tokenError := resolver.ResolveDeclaration(sanitized.TokenSource)
	if tokenError != nil {
		return nil, fmt.Errorf(tokenResolutionErrorTemplateConstant, sanitized.TokenSource, tokenError)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: sanitized.Timeout}
	}

	return NewClient(httpClient, ClientConfiguration{
		BaseURL: sanitized.BaseURL,
		Token:   token,
		Timeout: sanitized.Timeout,
	})
}

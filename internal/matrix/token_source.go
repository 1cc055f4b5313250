package matrix

import (
	"errors"
	"fmt"
	"os"
	"strings"

	pathutils "github.com/Byteflies/matrix-qms-github-actions/internal/utils/path"
)

const (
	tokenSourceSeparatorConstant            = ":"
	environmentTokenSourceKindConstant      = "env"
	fileTokenSourceKindConstant             = "file"
	tokenSourceMissingMessageConstant       = "token source must be provided"
	tokenSourceReferenceMessageConstant     = "token source reference must be provided"
	tokenEnvironmentMissingTemplateConstant = "environment variable %s is not set"
	tokenFileReadTemplateConstant           = "unable to read token file %s: %w"
	tokenFileEmptyTemplateConstant          = "token file %s is empty"
	unsupportedTokenSourceTemplateConstant  = "unsupported token source kind %q"
	tokenSourceDescriptionTemplateConstant  = "%s:%s"
)

// DefaultTokenSource reads the repository token from MATRIX_TOKEN.
const DefaultTokenSource = "env:MATRIX_TOKEN"

var (
	// ErrTokenSourceMissing indicates an empty token source declaration.
	ErrTokenSourceMissing = errors.New(tokenSourceMissingMessageConstant)
	// ErrTokenSourceReferenceMissing indicates a declaration without a variable name or path.
	ErrTokenSourceReferenceMissing = errors.New(tokenSourceReferenceMessageConstant)
)

// TokenSourceKind enumerates where a repository token may be read from.
type TokenSourceKind string

// Supported token source kinds.
const (
	TokenSourceKindEnvironment TokenSourceKind = TokenSourceKind(environmentTokenSourceKindConstant)
	TokenSourceKindFile        TokenSourceKind = TokenSourceKind(fileTokenSourceKindConstant)
)

// TokenSource is a parsed env:NAME or file:/path declaration.
type TokenSource struct {
	Kind      TokenSourceKind
	Reference string
}

// String renders the declaration form of the source.
func (source TokenSource) String() string {
	return fmt.Sprintf(tokenSourceDescriptionTemplateConstant, source.Kind, source.Reference)
}

// ParseTokenSource interprets a token source declaration. A bare value names an environment variable.
func ParseTokenSource(declaration string) (TokenSource, error) {
	trimmedDeclaration := strings.TrimSpace(declaration)
	if len(trimmedDeclaration) == 0 {
		return TokenSource{}, ErrTokenSourceMissing
	}

	kindValue, reference, separated := strings.Cut(trimmedDeclaration, tokenSourceSeparatorConstant)
	if !separated {
		return TokenSource{Kind: TokenSourceKindEnvironment, Reference: trimmedDeclaration}, nil
	}

	reference = strings.TrimSpace(reference)
	if len(reference) == 0 {
		return TokenSource{}, ErrTokenSourceReferenceMissing
	}

	switch kind := TokenSourceKind(strings.ToLower(strings.TrimSpace(kindValue))); kind {
	case TokenSourceKindEnvironment, TokenSourceKindFile:
		return TokenSource{Kind: kind, Reference: reference}, nil
	default:
		return TokenSource{}, fmt.Errorf(unsupportedTokenSourceTemplateConstant, kind)
	}
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// TokenResolver reads repository tokens from their declared sources.
type TokenResolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
}

// NewTokenResolver creates a resolver; nil collaborators fall back to the process environment and file system.
// The default file reader expands "~" and $NAME references, reading variables through environmentLookup.
func NewTokenResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *TokenResolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		pathExpander := pathutils.NewPathExpanderWithLookups(nil, pathutils.EnvironmentLookup(environmentLookup))
		fileReader = func(path string) ([]byte, error) {
			return os.ReadFile(pathExpander.Expand(path))
		}
	}
	return &TokenResolver{environmentLookup: environmentLookup, fileReader: fileReader}
}

// Resolve returns the trimmed token found at source.
func (resolver *TokenResolver) Resolve(source TokenSource) (string, error) {
	switch source.Kind {
	case TokenSourceKindEnvironment:
		value, found := resolver.environmentLookup(source.Reference)
		trimmedValue := strings.TrimSpace(value)
		if !found || len(trimmedValue) == 0 {
			return "", fmt.Errorf(tokenEnvironmentMissingTemplateConstant, source.Reference)
		}
		return trimmedValue, nil
	case TokenSourceKindFile:
		contents, readError := resolver.fileReader(source.Reference)
		if readError != nil {
			return "", fmt.Errorf(tokenFileReadTemplateConstant, source.Reference, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(tokenFileEmptyTemplateConstant, source.Reference)
		}
		return trimmedValue, nil
	default:
		return "", fmt.Errorf(unsupportedTokenSourceTemplateConstant, source.Kind)
	}
}

// ResolveDeclaration parses and resolves a declaration in one step.
func (resolver *TokenResolver) ResolveDeclaration(declaration string) (string, error) {
	source, parseError := ParseTokenSource(declaration)
	if parseError != nil {
		return "", parseError
	}
	return resolver.Resolve(source)
}

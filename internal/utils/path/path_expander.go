package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	homeShortcutConstant   = "~"
	variableMarkerConstant = "$"
	homePathPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// PathExpander resolves the home shortcut and environment references in
// configuration and token file paths, e.g. "~/token" or "$XDG_CONFIG_HOME/matrixlint/token".
type PathExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	environmentLookup     EnvironmentLookup
	homeDirectory         string
	homeDirectoryFound    bool
	homeDirectoryOnce     sync.Once
}

// NewPathExpander constructs a PathExpander backed by the process environment.
func NewPathExpander() *PathExpander {
	return NewPathExpanderWithLookups(os.UserHomeDir, os.LookupEnv)
}

// NewPathExpanderWithLookups constructs a PathExpander with custom lookups; nil values use the process defaults.
func NewPathExpanderWithLookups(homeDirectoryProvider HomeDirectoryProvider, environmentLookup EnvironmentLookup) *PathExpander {
	if homeDirectoryProvider == nil {
		homeDirectoryProvider = os.UserHomeDir
	}
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	return &PathExpander{homeDirectoryProvider: homeDirectoryProvider, environmentLookup: environmentLookup}
}

// Expand substitutes $NAME and ${NAME} references, then a leading "~" or "~/".
// Undefined variables expand to the empty string; "~user" forms are left alone.
func (expander *PathExpander) Expand(candidatePath string) string {
	if expander == nil {
		return candidatePath
	}
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return candidatePath
	}

	expandedPath := trimmedPath
	if strings.Contains(expandedPath, variableMarkerConstant) {
		expandedPath = os.Expand(expandedPath, expander.lookupVariable)
	}

	return expander.expandHome(expandedPath)
}

func (expander *PathExpander) lookupVariable(name string) string {
	value, found := expander.environmentLookup(name)
	if !found {
		return ""
	}
	return value
}

func (expander *PathExpander) expandHome(candidatePath string) string {
	if candidatePath != homeShortcutConstant && !strings.HasPrefix(candidatePath, homePathPrefixConstant) && !strings.HasPrefix(candidatePath, homeShortcutConstant+string(os.PathSeparator)) {
		return candidatePath
	}

	homeDirectory, found := expander.resolveHomeDirectory()
	if !found {
		return candidatePath
	}
	if candidatePath == homeShortcutConstant {
		return homeDirectory
	}
	return filepath.Join(homeDirectory, candidatePath[len(homeShortcutConstant)+1:])
}

func (expander *PathExpander) resolveHomeDirectory() (string, bool) {
	expander.homeDirectoryOnce.Do(func() {
		homeDirectory, providerError := expander.homeDirectoryProvider()
		expander.homeDirectory = homeDirectory
		expander.homeDirectoryFound = providerError == nil && len(homeDirectory) > 0
	})
	return expander.homeDirectory, expander.homeDirectoryFound
}

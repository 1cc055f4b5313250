package pathutils_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/Byteflies/matrix-qms-github-actions/internal/utils/path"
)

const (
	pathExpanderSubtestNameTemplateConstant = "%d_%s"
	testHomeDirectoryConstant               = "/home/quality"
	testConfigurationHomeConstant           = "/srv/config"
)

func TestPathExpanderExpand(testInstance *testing.T) {
	homeProvider := func() (string, error) { return testHomeDirectoryConstant, nil }
	environment := map[string]string{"XDG_CONFIG_HOME": testConfigurationHomeConstant, "TOKEN_DIR": "~/secrets"}
	environmentLookup := func(key string) (string, bool) {
		value, found := environment[key]
		return value, found
	}

	testCases := []struct {
		name          string
		provider      pathutils.HomeDirectoryProvider
		candidatePath string
		expectedPath  string
	}{
		{name: "tilde_alone", provider: homeProvider, candidatePath: "~", expectedPath: testHomeDirectoryConstant},
		{name: "tilde_prefix", provider: homeProvider, candidatePath: "~/.config/matrixlint/token", expectedPath: filepath.Join(testHomeDirectoryConstant, ".config", "matrixlint", "token")},
		{name: "variable", provider: homeProvider, candidatePath: "$XDG_CONFIG_HOME/matrixlint/token", expectedPath: "/srv/config/matrixlint/token"},
		{name: "braced_variable", provider: homeProvider, candidatePath: "${XDG_CONFIG_HOME}/matrixlint", expectedPath: "/srv/config/matrixlint"},
		{name: "variable_holding_tilde", provider: homeProvider, candidatePath: "$TOKEN_DIR/matrix", expectedPath: filepath.Join(testHomeDirectoryConstant, "secrets", "matrix")},
		{name: "undefined_variable", provider: homeProvider, candidatePath: "$MISSING/token", expectedPath: "/token"},
		{name: "absolute_path_untouched", provider: homeProvider, candidatePath: "/etc/matrixlint/token", expectedPath: "/etc/matrixlint/token"},
		{name: "other_user_untouched", provider: homeProvider, candidatePath: "~auditor/token", expectedPath: "~auditor/token"},
		{name: "home_failure", provider: func() (string, error) { return "", errors.New("no home") }, candidatePath: "~/token", expectedPath: "~/token"},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(pathExpanderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subtest *testing.T) {
			expander := pathutils.NewPathExpanderWithLookups(testCase.provider, environmentLookup)
			require.Equal(subtest, testCase.expectedPath, expander.Expand(testCase.candidatePath))
		})
	}
}

func TestPathExpanderNilReceiver(testInstance *testing.T) {
	var expander *pathutils.PathExpander
	require.Equal(testInstance, "~/token", expander.Expand("~/token"))
}

package upload_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Byteflies/matrix-qms-github-actions/internal/matrix"
	"github.com/Byteflies/matrix-qms-github-actions/internal/upload"
)

const (
	tokenEnvironmentVariableConstant = "MATRIX_TOKEN"
	localFileNameConstant            = "build-report.pdf"
)

type stubPrompter struct {
	answer   bool
	failure  error
	messages []string
}

func (prompter *stubPrompter) Confirm(executionContext context.Context, message string) (bool, error) {
	prompter.messages = append(prompter.messages, message)
	return prompter.answer, prompter.failure
}

func writeLocalFile(testInstance *testing.T) string {
	testInstance.Helper()
	filePath := filepath.Join(testInstance.TempDir(), localFileNameConstant)
	require.NoError(testInstance, os.WriteFile(filePath, []byte(fileContentConstant), 0o600))
	return filePath
}

func TestUploadCommand(testInstance *testing.T) {
	localFilePath := writeLocalFile(testInstance)

	testCases := []struct {
		name             string
		arguments        []string
		configuration    upload.CommandConfiguration
		prompter         *stubPrompter
		expectedError    error
		expectAnyError   bool
		expectedOutput   string
		expectedPrompts  int
		expectedUploads  int
		expectedFileName string
		expectedReason   string
	}{
		{
			name:             "confirmed_upload_uses_file_base_name",
			arguments:        []string{"--item", itemReferenceConstant, "--field", fieldIdentifierConstant, "--file", localFilePath},
			configuration:    upload.DefaultCommandConfiguration(),
			prompter:         &stubPrompter{answer: true},
			expectedOutput:   "Attached build-report.pdf to REQ-1 field fx42 (file 1)\n",
			expectedPrompts:  1,
			expectedUploads:  1,
			expectedFileName: localFileNameConstant,
			expectedReason:   "file uploaded by matrix-lint",
		},
		{
			name:            "declined_upload",
			arguments:       []string{"--item", itemReferenceConstant, "--field", fieldIdentifierConstant, "--file", localFilePath},
			configuration:   upload.DefaultCommandConfiguration(),
			prompter:        &stubPrompter{answer: false},
			expectedOutput:  "Upload of build-report.pdf cancelled\n",
			expectedPrompts: 1,
		},
		{
			name:             "assume_yes_flag_with_overrides",
			arguments:        []string{"--item", itemReferenceConstant, "--field", fieldIdentifierConstant, "--file", localFilePath, "--file-name", fileNameConstant, "--reason", reasonConstant, "--yes"},
			configuration:    upload.DefaultCommandConfiguration(),
			prompter:         &stubPrompter{},
			expectedOutput:   "Attached report.pdf to REQ-1 field fx42 (file 1)\n",
			expectedUploads:  1,
			expectedFileName: fileNameConstant,
			expectedReason:   reasonConstant,
		},
		{
			name:             "assume_yes_from_configuration",
			arguments:        []string{"--item", itemReferenceConstant, "--field", fieldIdentifierConstant, "--file", localFilePath},
			configuration:    upload.CommandConfiguration{Reason: reasonConstant, AssumeYes: true},
			prompter:         &stubPrompter{},
			expectedOutput:   "Attached build-report.pdf to REQ-1 field fx42 (file 1)\n",
			expectedUploads:  1,
			expectedFileName: localFileNameConstant,
			expectedReason:   reasonConstant,
		},
		{
			name:          "missing_file_flag",
			arguments:     []string{"--item", itemReferenceConstant, "--field", fieldIdentifierConstant},
			configuration: upload.DefaultCommandConfiguration(),
			prompter:      &stubPrompter{answer: true},
			expectedError: upload.ErrFilePathMissing,
		},
		{
			name:           "field_without_fx_is_rejected_before_prompt",
			arguments:      []string{"--item", itemReferenceConstant, "--field", "42", "--file", localFilePath},
			configuration:  upload.DefaultCommandConfiguration(),
			prompter:       &stubPrompter{answer: true},
			expectAnyError: true,
		},
		{
			name:            "prompt_failure",
			arguments:       []string{"--item", itemReferenceConstant, "--field", fieldIdentifierConstant, "--file", localFilePath},
			configuration:   upload.DefaultCommandConfiguration(),
			prompter:        &stubPrompter{failure: errors.New("no terminal")},
			expectAnyError:  true,
			expectedPrompts: 1,
		},
		{
			name:           "missing_local_file",
			arguments:      []string{"--item", itemReferenceConstant, "--field", fieldIdentifierConstant, "--file", filepath.Join(testInstance.TempDir(), "absent.pdf"), "--yes"},
			configuration:  upload.DefaultCommandConfiguration(),
			prompter:       &stubPrompter{},
			expectAnyError: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(uploadSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subtest *testing.T) {
			server := newUploadServer()
			defer server.Close()

			builder := upload.CommandBuilder{
				ConfigurationProvider: func() upload.CommandConfiguration { return testCase.configuration },
				RepositoryConfigurationProvider: func() matrix.RepositoryConfiguration {
					configuration := matrix.DefaultRepositoryConfiguration()
					configuration.BaseURL = server.URL
					configuration.Project = projectNameConstant
					return configuration
				},
				PrompterFactory: func(*cobra.Command) upload.ConfirmationPrompter { return testCase.prompter },
				TokenResolver: matrix.NewTokenResolver(func(key string) (string, bool) {
					return tokenValueConstant, key == tokenEnvironmentVariableConstant
				}, nil),
			}

			command, buildError := builder.Build()
			require.NoError(subtest, buildError)

			var output bytes.Buffer
			command.SetOut(&output)
			command.SetErr(&bytes.Buffer{})
			command.SilenceUsage = true
			command.SilenceErrors = true
			command.SetArgs(testCase.arguments)

			executeError := command.Execute()
			switch {
			case testCase.expectedError != nil:
				require.ErrorIs(subtest, executeError, testCase.expectedError)
			case testCase.expectAnyError:
				require.Error(subtest, executeError)
			default:
				require.NoError(subtest, executeError)
				require.Equal(subtest, testCase.expectedOutput, output.String())
			}

			require.Len(subtest, testCase.prompter.messages, testCase.expectedPrompts)
			uploads := server.Uploads()
			require.Len(subtest, uploads, testCase.expectedUploads)
			if testCase.expectedUploads > 0 {
				require.Equal(subtest, testCase.expectedFileName, uploads[0].FileName)
				require.Equal(subtest, fileContentConstant, string(uploads[0].Content))
				updates := server.FieldUpdates()
				require.Len(subtest, updates, 1)
				require.Equal(subtest, testCase.expectedReason, updates[0].Fields["reason"])
			}
		})
	}
}

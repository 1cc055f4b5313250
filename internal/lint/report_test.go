package lint_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Byteflies/matrix-qms-github-actions/internal/lint"
	"github.com/Byteflies/matrix-qms-github-actions/internal/references"
	"github.com/Byteflies/matrix-qms-github-actions/internal/richtext"
)

const (
	reportSubtestNameTemplateConstant = "%d_%s"
	brokenLinkConstant                = "https://x.test/a"
)

const expectedTextReportConstant = `STATUS     ITEM   FIELD        KIND            REFERENCE         DETAIL
NOT_FOUND  REQ-1  Description  anchor          https://x.test/a  Not Found
VALID      REQ-1  Description  item-reference  REQ-2             -
ERROR REQ-3: unable to fetch item REQ-3: boom
DUPLICATE REQ-1
project QMS: 1 items, 2 references, 1 valid, 1 not found, 0 unreachable, 0 skipped, 1 item errors
`

func sampleReport() lint.Report {
	return lint.Report{
		Project: projectNameConstant,
		Items:   1,
		Outcomes: []lint.Outcome{
			{
				Project:    projectNameConstant,
				Item:       "REQ-1",
				ItemTitle:  "Login",
				Field:      "Description",
				Kind:       richtext.ReferenceKindAnchor,
				Reference:  brokenLinkConstant,
				Status:     references.StatusNotFound,
				StatusCode: 404,
				Detail:     "Not Found",
			},
			{
				Project:   projectNameConstant,
				Item:      "REQ-1",
				ItemTitle: "Login",
				Field:     "Description",
				Kind:      richtext.ReferenceKindItemReference,
				Reference: "REQ-2",
				Status:    references.StatusValid,
			},
		},
		ItemErrors: []lint.ItemError{{Item: "REQ-3", Message: "unable to fetch item REQ-3: boom"}},
		Duplicates: []string{"REQ-1"},
	}
}

func TestReportSummary(testInstance *testing.T) {
	report := sampleReport()
	summary := report.Summary()

	require.Equal(testInstance, lint.Summary{Items: 1, Outcomes: 2, Valid: 1, NotFound: 1, ItemErrors: 1}, summary)
	require.Equal(testInstance, 2, summary.Failures())
	require.True(testInstance, report.Failed())

	clean := lint.Report{Outcomes: []lint.Outcome{{Status: references.StatusValid}, {Status: references.StatusSkipped}}}
	require.False(testInstance, clean.Failed())
}

func TestParseFormat(testInstance *testing.T) {
	testCases := []struct {
		name        string
		value       string
		expected    lint.Format
		expectError bool
	}{
		{name: "empty", value: "", expected: lint.FormatText},
		{name: "json", value: "json", expected: lint.FormatJSON},
		{name: "mixed_case", value: " YAML ", expected: lint.FormatYAML},
		{name: "csv", value: "csv", expected: lint.FormatCSV},
		{name: "unknown", value: "xml", expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(reportSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subtest *testing.T) {
			format, parseError := lint.ParseFormat(testCase.value)
			if testCase.expectError {
				require.Error(subtest, parseError)
				return
			}
			require.NoError(subtest, parseError)
			require.Equal(subtest, testCase.expected, format)
		})
	}
}

func TestWriteReportText(testInstance *testing.T) {
	var output bytes.Buffer
	require.NoError(testInstance, lint.WriteReport(&output, sampleReport(), lint.FormatText))
	require.Equal(testInstance, expectedTextReportConstant, output.String())
}

func TestWriteReportTextWithoutOutcomes(testInstance *testing.T) {
	var output bytes.Buffer
	require.NoError(testInstance, lint.WriteReport(&output, lint.Report{Project: projectNameConstant}, lint.FormatText))
	require.Equal(testInstance, "project QMS: 0 items, 0 references, 0 valid, 0 not found, 0 unreachable, 0 skipped, 0 item errors\n", output.String())
}

func TestWriteReportJSON(testInstance *testing.T) {
	var output bytes.Buffer
	require.NoError(testInstance, lint.WriteReport(&output, sampleReport(), lint.FormatJSON))

	var decoded struct {
		Project  string         `json:"project"`
		Outcomes []lint.Outcome `json:"outcomes"`
		Summary  lint.Summary   `json:"summary"`
	}
	require.NoError(testInstance, json.Unmarshal(output.Bytes(), &decoded))
	require.Equal(testInstance, projectNameConstant, decoded.Project)
	require.Equal(testInstance, sampleReport().Outcomes, decoded.Outcomes)
	require.Equal(testInstance, 1, decoded.Summary.NotFound)
	require.Contains(testInstance, output.String(), `"itemErrors"`)
}

func TestWriteReportYAML(testInstance *testing.T) {
	var output bytes.Buffer
	require.NoError(testInstance, lint.WriteReport(&output, sampleReport(), lint.FormatYAML))

	var decoded map[string]any
	require.NoError(testInstance, yaml.Unmarshal(output.Bytes(), &decoded))
	require.Equal(testInstance, projectNameConstant, decoded["project"])
	require.Len(testInstance, decoded["outcomes"], 2)
	require.Equal(testInstance, []any{"REQ-1"}, decoded["duplicates"])

	summary, isMap := decoded["summary"].(map[string]any)
	require.True(testInstance, isMap)
	require.Equal(testInstance, 1, summary["not_found"])
}

func TestWriteReportCSV(testInstance *testing.T) {
	var output bytes.Buffer
	require.NoError(testInstance, lint.WriteReport(&output, sampleReport(), lint.FormatCSV))

	records, readError := csv.NewReader(strings.NewReader(output.String())).ReadAll()
	require.NoError(testInstance, readError)
	require.Equal(testInstance, [][]string{
		{"project", "item", "title", "field", "kind", "reference", "status", "status_code", "internal", "detail"},
		{"QMS", "REQ-1", "Login", "Description", "anchor", brokenLinkConstant, "NOT_FOUND", "404", "false", "Not Found"},
		{"QMS", "REQ-1", "Login", "Description", "item-reference", "REQ-2", "VALID", "", "false", ""},
	}, records)
}

func TestWriteReportRejectsUnknownFormat(testInstance *testing.T) {
	require.Error(testInstance, lint.WriteReport(&bytes.Buffer{}, sampleReport(), lint.Format("xml")))
}

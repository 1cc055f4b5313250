package lint

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"
)

const (
	formatTextValueConstant           = "text"
	formatJSONValueConstant           = "json"
	formatYAMLValueConstant           = "yaml"
	formatCSVValueConstant            = "csv"
	unsupportedFormatTemplateConstant = "unsupported report format %q"
	tableColumnGapConstant            = "  "
	jsonIndentConstant                = "  "
	summaryTemplateConstant           = "project %s: %d items, %d references, %d valid, %d not found, %d unreachable, %d skipped, %d item errors\n"
	itemErrorTemplateConstant         = "ERROR %s: %s\n"
	duplicateTemplateConstant         = "DUPLICATE %s\n"
	emptyCellConstant                 = "-"
	csvHeaderProjectConstant          = "project"
	csvHeaderItemConstant             = "item"
	csvHeaderTitleConstant            = "title"
	csvHeaderFieldConstant            = "field"
	csvHeaderKindConstant             = "kind"
	csvHeaderReferenceConstant        = "reference"
	csvHeaderStatusConstant           = "status"
	csvHeaderStatusCodeConstant       = "status_code"
	csvHeaderInternalConstant         = "internal"
	csvHeaderDetailConstant           = "detail"
	tableHeaderStatusConstant         = "STATUS"
	tableHeaderItemConstant           = "ITEM"
	tableHeaderFieldConstant          = "FIELD"
	tableHeaderKindConstant           = "KIND"
	tableHeaderReferenceConstant      = "REFERENCE"
	tableHeaderDetailConstant         = "DETAIL"
)

// Format selects how a report is rendered.
type Format string

// Supported report formats.
const (
	FormatText Format = formatTextValueConstant
	FormatJSON Format = formatJSONValueConstant
	FormatYAML Format = formatYAMLValueConstant
	FormatCSV  Format = formatCSVValueConstant
)

// FormatChoices lists the accepted format values.
func FormatChoices() []string {
	return []string{formatTextValueConstant, formatJSONValueConstant, formatYAMLValueConstant, formatCSVValueConstant}
}

// ParseFormat interprets a format name; empty selects text.
func ParseFormat(value string) (Format, error) {
	switch normalized := Format(strings.ToLower(strings.TrimSpace(value))); normalized {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatCSV:
		return normalized, nil
	default:
		return "", fmt.Errorf(unsupportedFormatTemplateConstant, value)
	}
}

// WriteReport renders report to writer.
func WriteReport(writer io.Writer, report Report, format Format) error {
	switch format {
	case FormatText, "":
		return writeTextReport(writer, report)
	case FormatJSON:
		return writeJSONReport(writer, report)
	case FormatYAML:
		return writeYAMLReport(writer, report)
	case FormatCSV:
		return writeCSVReport(writer, report)
	default:
		return fmt.Errorf(unsupportedFormatTemplateConstant, format)
	}
}

type reportDocument struct {
	Report  `yaml:",inline"`
	Summary Summary `json:"summary" yaml:"summary"`
}

func writeJSONReport(writer io.Writer, report Report) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", jsonIndentConstant)
	return encoder.Encode(reportDocument{Report: report, Summary: report.Summary()})
}

func writeYAMLReport(writer io.Writer, report Report) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if encodeError := encoder.Encode(reportDocument{Report: report, Summary: report.Summary()}); encodeError != nil {
		return encodeError
	}
	return encoder.Close()
}

func writeCSVReport(writer io.Writer, report Report) error {
	csvWriter := csv.NewWriter(writer)
	header := []string{
		csvHeaderProjectConstant,
		csvHeaderItemConstant,
		csvHeaderTitleConstant,
		csvHeaderFieldConstant,
		csvHeaderKindConstant,
		csvHeaderReferenceConstant,
		csvHeaderStatusConstant,
		csvHeaderStatusCodeConstant,
		csvHeaderInternalConstant,
		csvHeaderDetailConstant,
	}
	if writeError := csvWriter.Write(header); writeError != nil {
		return writeError
	}

	for _, outcome := range report.Outcomes {
		statusCode := ""
		if outcome.StatusCode != 0 {
			statusCode = strconv.Itoa(outcome.StatusCode)
		}
		record := []string{
			outcome.Project,
			outcome.Item,
			outcome.ItemTitle,
			outcome.Field,
			string(outcome.Kind),
			outcome.Reference,
			outcome.Status.String(),
			statusCode,
			strconv.FormatBool(outcome.Internal),
			outcome.Detail,
		}
		if writeError := csvWriter.Write(record); writeError != nil {
			return writeError
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func writeTextReport(writer io.Writer, report Report) error {
	if len(report.Outcomes) > 0 {
		rows := [][]string{{
			tableHeaderStatusConstant,
			tableHeaderItemConstant,
			tableHeaderFieldConstant,
			tableHeaderKindConstant,
			tableHeaderReferenceConstant,
			tableHeaderDetailConstant,
		}}
		for _, outcome := range report.Outcomes {
			rows = append(rows, []string{
				outcome.Status.String(),
				outcome.Item,
				cellValue(outcome.Field),
				string(outcome.Kind),
				outcome.Reference,
				cellValue(outcome.Detail),
			})
		}
		for _, line := range alignColumns(rows) {
			if _, writeError := io.WriteString(writer, line+"\n"); writeError != nil {
				return writeError
			}
		}
	}

	for _, itemError := range report.ItemErrors {
		if _, writeError := fmt.Fprintf(writer, itemErrorTemplateConstant, itemError.Item, itemError.Message); writeError != nil {
			return writeError
		}
	}
	for _, duplicate := range report.Duplicates {
		if _, writeError := fmt.Fprintf(writer, duplicateTemplateConstant, duplicate); writeError != nil {
			return writeError
		}
	}

	summary := report.Summary()
	_, writeError := fmt.Fprintf(
		writer,
		summaryTemplateConstant,
		report.Project,
		summary.Items,
		summary.Outcomes,
		summary.Valid,
		summary.NotFound,
		summary.Unreachable,
		summary.Skipped,
		summary.ItemErrors,
	)
	return writeError
}

// alignColumns pads every cell but the last to its column's display width.
func alignColumns(rows [][]string) []string {
	columnWidths := make([]int, 0)
	for _, row := range rows {
		for columnIndex, cell := range row {
			if columnIndex >= len(columnWidths) {
				columnWidths = append(columnWidths, 0)
			}
			if width := runewidth.StringWidth(cell); width > columnWidths[columnIndex] {
				columnWidths[columnIndex] = width
			}
		}
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var builder strings.Builder
		for columnIndex, cell := range row {
			if columnIndex == len(row)-1 {
				builder.WriteString(cell)
				break
			}
			builder.WriteString(runewidth.FillRight(cell, columnWidths[columnIndex]))
			builder.WriteString(tableColumnGapConstant)
		}
		lines = append(lines, strings.TrimRight(builder.String(), " "))
	}
	return lines
}

func cellValue(value string) string {
	if len(strings.TrimSpace(value)) == 0 {
		return emptyCellConstant
	}
	return value
}

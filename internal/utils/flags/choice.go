package flags

import (
	"fmt"
	"strings"
)

const (
	choicePlaceholderTemplateConstant   = "<%s>"
	choiceSeparatorConstant             = "|"
	choiceUsageTemplateConstant         = "`%s`"
	choiceUsageWithTextTemplateConstant = "`%s` %s"
	unsupportedChoiceTemplateConstant   = "unsupported value %q (expected one of %s)"
)

// FormatChoiceUsage renders usage text listing choices, with the default
// choice upper-cased: "`<TEXT|json>` Report format."
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := fmt.Sprintf(choicePlaceholderTemplateConstant, strings.Join(displayChoices(defaultChoice, choices), choiceSeparatorConstant))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(choiceUsageTemplateConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageWithTextTemplateConstant, placeholder, trimmedDescription)
}

// ParseChoice returns the lower-cased value when it is one of choices.
func ParseChoice(value string, choices []string) (string, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(value))
	for _, choice := range choices {
		if strings.ToLower(strings.TrimSpace(choice)) == normalizedValue {
			return normalizedValue, nil
		}
	}
	return "", fmt.Errorf(unsupportedChoiceTemplateConstant, value, strings.Join(choices, choiceSeparatorConstant))
}

func displayChoices(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	seenChoices := make(map[string]struct{}, len(choices))
	displayed := make([]string, 0, len(choices))

	for _, choice := range choices {
		normalizedChoice := strings.ToLower(strings.TrimSpace(choice))
		if len(normalizedChoice) == 0 {
			continue
		}
		if _, seen := seenChoices[normalizedChoice]; seen {
			continue
		}
		seenChoices[normalizedChoice] = struct{}{}

		if normalizedChoice == normalizedDefault {
			displayed = append(displayed, strings.ToUpper(normalizedChoice))
			continue
		}
		displayed = append(displayed, normalizedChoice)
	}

	return displayed
}

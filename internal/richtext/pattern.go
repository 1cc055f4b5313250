package richtext

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	referencePatternTemplateConstant             = `(?:^|[^A-Za-z0-9_-])((?:%s)-[0-9]+)\b`
	categoryAlternationSeparatorConstant         = "|"
	categoriesMissingMessageConstant             = "at least one reference category is required"
	invalidCategoryTemplateConstant              = "invalid reference category %q"
	referencePatternCompileErrorTemplateConstant = "unable to compile reference pattern: %w"
)

var (
	defaultCategories = []string{"DOC", "VER", "SIGN", "REQ", "RISK", "SPEC", "VAL", "XTC"}
	categoryShape     = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
)

// ErrNoCategories is returned when a pattern is requested for an empty category set.
var ErrNoCategories = errors.New(categoriesMissingMessageConstant)

// DefaultCategories returns the item categories recognized in inline references.
func DefaultCategories() []string {
	return append([]string{}, defaultCategories...)
}

// ValidCategory reports whether category can be used in a reference pattern.
func ValidCategory(category string) bool {
	return categoryShape.MatchString(strings.ToUpper(strings.TrimSpace(category)))
}

// ReferencePattern matches inline item references: a category, a hyphen, and a
// decimal number. A reference glued to a preceding word or hyphen (F-REQ-1,
// XREQ-1) or followed by word characters (REQ-12x) does not match.
type ReferencePattern struct {
	expression *regexp.Regexp
	categories []string
}

// NewReferencePattern compiles the grammar for the given categories.
func NewReferencePattern(categories []string) (*ReferencePattern, error) {
	normalizedCategories := make([]string, 0, len(categories))
	seenCategories := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		normalizedCategory := strings.ToUpper(strings.TrimSpace(category))
		if len(normalizedCategory) == 0 {
			continue
		}
		if !categoryShape.MatchString(normalizedCategory) {
			return nil, fmt.Errorf(invalidCategoryTemplateConstant, category)
		}
		if _, seen := seenCategories[normalizedCategory]; seen {
			continue
		}
		seenCategories[normalizedCategory] = struct{}{}
		normalizedCategories = append(normalizedCategories, normalizedCategory)
	}
	if len(normalizedCategories) == 0 {
		return nil, ErrNoCategories
	}

	expression, compileError := regexp.Compile(fmt.Sprintf(referencePatternTemplateConstant, strings.Join(normalizedCategories, categoryAlternationSeparatorConstant)))
	if compileError != nil {
		return nil, fmt.Errorf(referencePatternCompileErrorTemplateConstant, compileError)
	}

	return &ReferencePattern{expression: expression, categories: normalizedCategories}, nil
}

// Categories returns the normalized categories the pattern recognizes.
func (pattern *ReferencePattern) Categories() []string {
	return append([]string{}, pattern.categories...)
}

// FindAll returns every non-overlapping reference in text, left to right.
func (pattern *ReferencePattern) FindAll(text string) []string {
	matchIndexes := pattern.expression.FindAllStringSubmatchIndex(text, -1)
	if len(matchIndexes) == 0 {
		return nil
	}
	references := make([]string, 0, len(matchIndexes))
	for _, matchIndex := range matchIndexes {
		reference := strings.TrimSpace(text[matchIndex[2]:matchIndex[3]])
		if len(reference) > 0 {
			references = append(references, reference)
		}
	}
	return references
}

package richtext

import "strings"

const (
	imageTagNameConstant          = "img"
	anchorTagNameConstant         = "a"
	imageSourceAttributeConstant  = "src"
	anchorTargetAttributeConstant = "href"
)

// ReferenceKind classifies an extracted reference.
type ReferenceKind string

// Reference kinds produced by a scan.
const (
	ReferenceKindImage         ReferenceKind = "image"
	ReferenceKindAnchor        ReferenceKind = "anchor"
	ReferenceKindItemReference ReferenceKind = "item-reference"
)

// ScanResult holds the references found in one fragment. Each collection keeps
// document order; there is no ordering across collections.
type ScanResult struct {
	Images         []string
	Anchors        []string
	ItemReferences []string
}

// Empty reports whether the scan found nothing.
func (result ScanResult) Empty() bool {
	return len(result.Images) == 0 && len(result.Anchors) == 0 && len(result.ItemReferences) == 0
}

// Scanner extracts references from rich-text fragments.
type Scanner struct {
	pattern *ReferencePattern
}

// NewScanner builds a scanner using the provided reference grammar.
func NewScanner(pattern *ReferencePattern) *Scanner {
	return &Scanner{pattern: pattern}
}

// NewDefaultScanner builds a scanner recognizing DefaultCategories.
func NewDefaultScanner() *Scanner {
	pattern, _ := NewReferencePattern(defaultCategories)
	return NewScanner(pattern)
}

// Categories returns the item categories the scanner recognizes.
func (scanner *Scanner) Categories() []string {
	if scanner.pattern == nil {
		return nil
	}
	return scanner.pattern.Categories()
}

// Scan performs a single pass over fragment.
func (scanner *Scanner) Scan(fragment string) ScanResult {
	var result ScanResult
	for event := range Events(fragment) {
		switch event.Kind {
		case EventOpenTag:
			scanner.collectAttribute(event, &result)
		case EventText:
			if scanner.pattern != nil {
				result.ItemReferences = append(result.ItemReferences, scanner.pattern.FindAll(event.Text)...)
			}
		}
	}
	return result
}

func (scanner *Scanner) collectAttribute(event Event, result *ScanResult) {
	switch strings.ToLower(event.Name) {
	case imageTagNameConstant:
		if source, present := event.Attribute(imageSourceAttributeConstant); present && len(strings.TrimSpace(source)) > 0 {
			result.Images = append(result.Images, strings.TrimSpace(source))
		}
	case anchorTagNameConstant:
		if target, present := event.Attribute(anchorTargetAttributeConstant); present && len(strings.TrimSpace(target)) > 0 {
			result.Anchors = append(result.Anchors, strings.TrimSpace(target))
		}
	}
}

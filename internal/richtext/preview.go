package richtext

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const previewEllipsisConstant = "..."

var (
	previewPolicyOnce sync.Once
	previewPolicy     *bluemonday.Policy
)

// Preview renders fragment as collapsed plain text of at most limit runes for
// diagnostics. It never feeds back into reference extraction.
func Preview(fragment string, limit int) string {
	trimmed := strings.TrimSpace(fragment)
	if len(trimmed) == 0 || limit <= 0 {
		return ""
	}

	plainText := html.UnescapeString(previewSanitizer().Sanitize(trimmed))
	collapsed := strings.Join(strings.Fields(plainText), " ")
	if utf8.RuneCountInString(collapsed) <= limit {
		return collapsed
	}

	runes := []rune(collapsed)
	return string(runes[:limit]) + previewEllipsisConstant
}

func previewSanitizer() *bluemonday.Policy {
	previewPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AddSpaceWhenStrippingTag(true)
		previewPolicy = policy
	})
	return previewPolicy
}

package references

import (
	"strings"

	"github.com/Byteflies/matrix-qms-github-actions/internal/tree"
)

// Index is the read-only set of reference identifiers of one tree snapshot.
// It is safe for concurrent readers.
type Index struct {
	items      map[string]tree.LeafItem
	duplicates []string
}

// NewIndex builds the index once per run. When an identifier repeats, the
// first occurrence is kept and the identifier is reported by Duplicates.
func NewIndex(items []tree.LeafItem) Index {
	indexed := make(map[string]tree.LeafItem, len(items))
	var duplicates []string
	for _, item := range items {
		referenceID := strings.TrimSpace(item.ReferenceID)
		if len(referenceID) == 0 {
			continue
		}
		if _, exists := indexed[referenceID]; exists {
			duplicates = append(duplicates, referenceID)
			continue
		}
		indexed[referenceID] = item
	}
	return Index{items: indexed, duplicates: duplicates}
}

// Validate reports Valid when token names a known item and NotFound otherwise.
func (index Index) Validate(token string) Status {
	if _, found := index.items[strings.TrimSpace(token)]; found {
		return StatusValid
	}
	return StatusNotFound
}

// Lookup returns the indexed item for referenceID.
func (index Index) Lookup(referenceID string) (tree.LeafItem, bool) {
	item, found := index.items[strings.TrimSpace(referenceID)]
	return item, found
}

// Len returns the number of distinct identifiers.
func (index Index) Len() int {
	return len(index.items)
}

// Duplicates lists the identifiers seen more than once, in encounter order.
func (index Index) Duplicates() []string {
	return append([]string(nil), index.duplicates...)
}

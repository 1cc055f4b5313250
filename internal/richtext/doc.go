// Package richtext extracts references from MatrixALM rich-text fields.
//
// Unwrap selects the HTML fragment stored in a field (directly for "richtext"
// fields, inside a JSON envelope for "dhf" fields). Events tokenizes a fragment
// in one forward pass, and Scanner turns the event stream into image sources,
// anchor targets, and inline item references such as REQ-42.
package richtext

// Package lint audits the rich-text fields of a MatrixALM project. It flattens
// the project tree, scans every leaf item for images, links and inline item
// references, validates them, and renders the resulting report.
package lint

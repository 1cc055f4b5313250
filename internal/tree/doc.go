// Package tree models the MatrixALM project tree as a tagged variant of leaves,
// folders, and lists, decodes it from the repository wire format, and flattens
// it into the ordered set of leaf items audited by the lint command.
package tree

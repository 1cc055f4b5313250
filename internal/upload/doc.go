// Package upload stores local files in a MatrixALM project and attaches them to
// the file field of an item. It is the only command that writes to the
// repository.
package upload

// Package cli constructs the matrix-lint command-line interface. It wires the
// Cobra command hierarchy to the layered configuration loader and the zap
// loggers, and registers the lint and upload commands.
package cli

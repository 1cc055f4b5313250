// Package references validates the targets extracted from rich text: inline
// item references against the run's reference index, and URLs by probing them
// over HTTP.
package references

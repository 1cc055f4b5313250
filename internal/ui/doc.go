// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate lint events into concise per-item messages so that
// progress stays readable for CLI users while detailed telemetry continues to
// flow through structured loggers.
package ui

// Package flags provides flag helpers shared by the command builders.
package flags

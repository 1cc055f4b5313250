package main

import (
	"fmt"
	"os"

	"github.com/Byteflies/matrix-qms-github-actions/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the matrix-lint command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}

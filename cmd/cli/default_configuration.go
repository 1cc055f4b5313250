package cli

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const (
	defaultsCommandUseConstant              = "defaults"
	defaultsCommandShortDescriptionConstant = "Print the built-in configuration"
	defaultsCommandLongDescriptionConstant  = "defaults prints the configuration matrix-lint starts from. Save it as config.yaml in the working directory or in $XDG_CONFIG_HOME/matrixlint and edit the values to change them."
	defaultsWriteErrorTemplateConstant      = "unable to write default configuration: %w"
)

//go:embed default_config.yaml
var defaultConfigurationDocument []byte

// EmbeddedDefaultConfiguration returns a copy of the built-in matrix-lint configuration and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return bytes.Clone(defaultConfigurationDocument), configurationTypeConstant
}

// WriteDefaultConfiguration writes the built-in configuration to output.
func WriteDefaultConfiguration(output io.Writer) error {
	if _, writeError := output.Write(defaultConfigurationDocument); writeError != nil {
		return fmt.Errorf(defaultsWriteErrorTemplateConstant, writeError)
	}
	return nil
}

func newDefaultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   defaultsCommandUseConstant,
		Short: defaultsCommandShortDescriptionConstant,
		Long:  defaultsCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return WriteDefaultConfiguration(command.OutOrStdout())
		},
	}
}

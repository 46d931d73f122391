package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hydrologic/mainstem/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a config file without starting anything",
		Long: `Check a configuration file against the embedded schema.

No provider is opened and no server is started; this only reports
whether the file would be accepted by serve and trace.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "✗ %v\n", err)
		return NewExitError(ExitFailure, "validation failed")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Config valid (provider: %s)\n", cfg.Provider.Name)
	if opts.Verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "  listen: %s\n", cfg.Server.Listen)
	}
	return nil
}

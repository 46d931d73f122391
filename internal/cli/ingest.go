package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydrologic/mainstem/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <geojson-file>",
		Short: "Load a GeoJSON feature collection into a SQLite database",
		Long: `Load network segments from a GeoJSON feature collection into a SQLite
database, creating the database if it does not exist. Existing segments
with the same id are replaced.

Example:
  mainstem ingest --db ./network.db ./segments.geojson`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runIngest(opts *IngestOptions, path string, cmd *cobra.Command) error {
	log := setupLogging(opts.Verbose)

	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	log.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	n, err := st.Ingest(ctx, data)
	if err != nil {
		return WrapExitError(ExitFailure, "ingest failed", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d segment(s) into %s\n", n, opts.Database)
	return nil
}

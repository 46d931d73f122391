package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydrologic/mainstem/internal/config"
	"github.com/hydrologic/mainstem/internal/httpapi"
	"github.com/hydrologic/mainstem/internal/service"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the trace HTTP server",
		Long: `Start the mainstem HTTP server.

The server loads the configured network provider and answers trace
requests on GET /trace until interrupted.

Example:
  mainstem serve --config mainstem.yaml
  mainstem serve --config mainstem.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	log := setupLogging(opts.Verbose)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	log.Info("opening provider", "name", cfg.Provider.Name)
	p, closer, err := buildProvider(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open provider", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Error("error closing provider", "error", closeErr)
		}
	}()

	svc := service.New(p, service.Options{
		MaxAttempts: cfg.Engine.MaxAttempts,
		Delta:       cfg.Engine.Delta,
		QueryLimit:  cfg.Engine.QueryLimit,
		CacheSize:   cfg.Server.CacheSize,
	}, log)
	api := httpapi.New(svc, log)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		log.Info("server starting", "listen", cfg.Server.Listen, "provider", cfg.Provider.Name)
		errChan <- srv.ListenAndServe()
	}()
	fmt.Fprintln(cmd.OutOrStdout(), "Server started. Press Ctrl-C to stop.")

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown error", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

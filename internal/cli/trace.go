package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hydrologic/mainstem/internal/config"
	"github.com/hydrologic/mainstem/internal/format"
	"github.com/hydrologic/mainstem/internal/service"
	"github.com/hydrologic/mainstem/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Config    string
	BBox      []float64
	Lat       float64
	Lon       float64
	Point     []float64
	FeatureID string
	SortDir   string
	SortBy    string
	GroupBy   []string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Run one trace and print the result",
		Long: `Run a single downstream trace and print the result to stdout.

Exactly one seed location form must be given: --bbox, --lat/--lon,
--point, or --feature-id.

Example:
  mainstem trace --config mainstem.yaml --lat 39.07 --lon -94.58
  mainstem trace --config mainstem.yaml --feature-id seg1 --groupby pathId --format csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().Float64SliceVar(&opts.BBox, "bbox", nil, "seed bounding box: minLon,minLat,maxLon,maxLat")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "seed latitude (with --lon)")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "seed longitude (with --lat)")
	cmd.Flags().Float64SliceVar(&opts.Point, "point", nil, "seed point: lon,lat")
	cmd.Flags().StringVar(&opts.FeatureID, "feature-id", "", "seed segment id")
	cmd.Flags().StringVar(&opts.SortDir, "sortdir", "", "sort direction (downstream|upstream)")
	cmd.Flags().StringVar(&opts.SortBy, "sortby", "", "sort property")
	cmd.Flags().StringSliceVar(&opts.GroupBy, "groupby", nil, "attribute names to merge contiguous runs by")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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
	}, log)

	req := service.Request{
		FeatureID:     opts.FeatureID,
		SortDirection: opts.SortDir,
		SortProperty:  opts.SortBy,
		GroupBy:       opts.GroupBy,
	}
	if len(opts.BBox) > 0 {
		req.BBox = opts.BBox
	}
	if len(opts.Point) > 0 {
		req.Point = opts.Point
	}
	if cmd.Flags().Changed("lat") {
		lat := opts.Lat
		req.Lat = &lat
	}
	if cmd.Flags().Changed("lon") {
		lon := opts.Lon
		req.Lon = &lon
	}

	_, features, err := svc.Execute(ctx, req)
	if err != nil {
		switch {
		case trace.IsInvalidInput(err):
			return WrapExitError(ExitCommandError, "invalid request", err)
		case trace.IsNotFound(err):
			return WrapExitError(ExitFailure, "no seed segment found", err)
		default:
			return WrapExitError(ExitFailure, "trace failed", err)
		}
	}

	var body []byte
	switch strings.ToLower(opts.Format) {
	case "csv":
		body, err = format.CSV(features)
	default:
		body, err = format.GeoJSON(features)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "encode result", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}

// Package service is the upward invocation surface of the tracing
// engine: it validates a request, resolves the seed, runs the trace,
// applies the optional group-by merge, and caches results.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/merge"
	"github.com/hydrologic/mainstem/internal/provider"
	"github.com/hydrologic/mainstem/internal/trace"
)

// MimeGeoJSON is the mime type of a successful trace result body.
const MimeGeoJSON = "application/geo+json"

// Request is one trace invocation. Exactly one of BBox, Lat+Lon, Point,
// or FeatureID must be set. SortDirection/SortProperty shape the output
// ordering; GroupBy asks for the contiguous-run merge. NoCache bypasses
// the response cache lookup (the fresh result is still stored).
type Request struct {
	BBox          []float64 `json:"bbox,omitempty"`
	Lat           *float64  `json:"lat,omitempty"`
	Lon           *float64  `json:"lon,omitempty"`
	Point         []float64 `json:"point,omitempty"`
	FeatureID     string    `json:"featureId,omitempty"`
	SortDirection string    `json:"sortDirection,omitempty"`
	SortProperty  string    `json:"sortProperty,omitempty"`
	GroupBy       []string  `json:"groupBy,omitempty"`
	NoCache       bool      `json:"-"`
}

// Options tunes the engine. Zero values fall back to the package
// defaults of internal/trace; CacheSize 0 disables the response cache.
type Options struct {
	MaxAttempts int
	Delta       float64
	QueryLimit  int
	CacheSize   int
}

// Service wires the locator, tracer, and merger over one provider.
type Service struct {
	p       provider.Interface
	locator *trace.Locator
	tracer  *trace.Tracer
	cache   *resultCache
	log     *slog.Logger
}

// New builds a Service over p.
func New(p provider.Interface, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		p:       p,
		locator: trace.NewLocator(p, opts.MaxAttempts, opts.Delta, log),
		tracer:  trace.NewTracer(p, opts.QueryLimit, log),
		log:     log,
	}
	if opts.CacheSize > 0 {
		s.cache = newResultCache(opts.CacheSize)
	}
	return s
}

// Execute runs one trace request end to end and returns the result mime
// type and feature collection.
//
// Returned collections are shared with the cache and must be treated as
// read-only. Error categories follow internal/trace: use
// trace.IsInvalidInput / trace.IsNotFound / trace.IsProviderError to map
// them onto a wire format.
func (s *Service) Execute(ctx context.Context, req Request) (string, []geo.Feature, error) {
	reqID := uuid.Must(uuid.NewV7()).String()
	log := s.log.With("request_id", reqID)

	key, err := cacheKey(req)
	if err != nil {
		return "", nil, fmt.Errorf("canonicalize request: %w", err)
	}
	if s.cache != nil && !req.NoCache {
		if mime, features, ok := s.cache.get(key); ok {
			log.Debug("cache hit")
			return mime, features, nil
		}
	}

	loc, err := location(req)
	if err != nil {
		return "", nil, err
	}

	seed, err := s.locator.Resolve(ctx, loc)
	if err != nil {
		return "", nil, err
	}
	log.Debug("seed resolved", "id", seed.ID, "path", seed.PathID, "sequence", seed.Sequence)

	grouping := len(req.GroupBy) > 0
	order := trace.PlanOrder(trace.ParseDirection(req.SortDirection), req.SortProperty, grouping)

	segments, err := s.tracer.Trace(ctx, seed, order)
	if err != nil {
		return "", nil, err
	}

	var features []geo.Feature
	if grouping {
		merged, outcome := merge.ByAttributes(segments, req.GroupBy, s.p.KnownFields())
		if outcome == merge.SkippedUnknownField {
			log.Warn("grouping skipped: unknown attribute in group keys", "keys", req.GroupBy)
		}
		features = merged
	} else {
		features = geo.Features(segments)
	}

	if s.cache != nil {
		s.cache.put(key, MimeGeoJSON, features)
	}
	log.Info("trace complete", "features", len(features), "grouped", grouping)
	return MimeGeoJSON, features, nil
}

// location maps the request's location fields onto the engine input.
// Form-count validation happens in the locator.
func location(req Request) (trace.Location, error) {
	loc := trace.Location{
		Lat:       req.Lat,
		Lon:       req.Lon,
		Point:     req.Point,
		FeatureID: req.FeatureID,
	}
	if req.BBox != nil {
		box, err := geo.BBoxFromSlice(req.BBox)
		if err != nil {
			return trace.Location{}, &trace.Error{
				Code:    trace.ErrCodeInvalidInput,
				Message: "bad bbox",
				Err:     err,
			}
		}
		loc.BBox = &box
	}
	return loc, nil
}

// cacheKey canonicalizes the request. NoCache is excluded: a no-cache
// request refreshes the same slot a cached one reads.
func cacheKey(req Request) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

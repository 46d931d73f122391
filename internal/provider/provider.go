// Package provider defines the data-query capability the tracing engine
// consumes. A provider answers bounding-box, attribute, and id lookups
// over a pre-built drainage network; it is read-only and side-effect-free
// from the engine's perspective.
//
// Both backends (the SQLite feature store and the remote ArcGIS adapter)
// implement Interface; the engine never knows which one it is talking to.
package provider

import (
	"context"
	"errors"

	"github.com/hydrologic/mainstem/internal/geo"
)

// ErrNotFound is returned by Get when no segment has the requested id,
// and by implementations whose underlying source reports an empty result
// for an id lookup.
var ErrNotFound = errors.New("feature not found")

// Combine selects how multiple query conditions are joined.
type Combine int

const (
	// CombineAnd requires all conditions to hold (the default).
	CombineAnd Combine = iota
	// CombineOr requires at least one condition to hold.
	CombineOr
)

// Condition is one attribute predicate: name = value. Names are the
// public attribute names from package geo.
type Condition struct {
	Name  string
	Value any
}

// Sort is one ordering term. Property names are public attribute names.
type Sort struct {
	Property   string
	Descending bool
}

// Query describes one provider query. Zero values mean "unconstrained":
// nil BBox skips the spatial filter, empty Conditions skips the attribute
// filter, empty Sort leaves ordering to the provider's default, and
// Limit <= 0 applies the provider's own cap.
type Query struct {
	BBox       *geo.BBox
	Conditions []Condition
	Combine    Combine
	Sort       []Sort
	Limit      int
	Offset     int
}

// Interface is the capability consumed by the engine.
type Interface interface {
	// Query returns the segments matching q, in q.Sort order when given.
	// An empty result is ([]geo.Segment{}, nil), not an error.
	Query(ctx context.Context, q Query) ([]geo.Segment, error)

	// Get returns the segment with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (geo.Segment, error)

	// KnownFields reports the attribute names the underlying dataset
	// recognizes, including the required segment fields.
	KnownFields() map[string]struct{}
}

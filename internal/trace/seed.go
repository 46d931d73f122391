package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/provider"
)

// Defaults for the bounded bbox-expansion retry.
const (
	DefaultMaxAttempts = 3
	DefaultDelta       = 0.025
)

// Location is the caller's starting point. Exactly one form must be set:
// a bounding box, a latitude+longitude pair, a coordinate pair
// ([lon, lat]), or a feature id. A lat/long pair normalizes to a
// degenerate bounding box before validation.
type Location struct {
	BBox      *geo.BBox
	Lat       *float64
	Lon       *float64
	Point     []float64
	FeatureID string
}

// box reduces the location to a bounding box, if a spatial form was
// given. Returns the number of forms supplied so callers can reject
// ambiguous input.
func (l Location) box() (*geo.BBox, int, error) {
	forms := 0
	var b *geo.BBox

	if l.BBox != nil {
		forms++
		bb := *l.BBox
		b = &bb
	}
	if l.Lat != nil || l.Lon != nil {
		if l.Lat == nil || l.Lon == nil {
			return nil, forms, fmt.Errorf("latitude and longitude must be given together")
		}
		forms++
		bb := geo.PointBox(*l.Lon, *l.Lat)
		b = &bb
	}
	if l.Point != nil {
		if len(l.Point) != 2 {
			return nil, forms, fmt.Errorf("coordinate pair needs 2 values, got %d", len(l.Point))
		}
		forms++
		bb := geo.PointBox(l.Point[0], l.Point[1])
		b = &bb
	}
	if l.FeatureID != "" {
		forms++
	}
	return b, forms, nil
}

// Locator resolves a starting network segment from a location input,
// retrying with an expanded search area when the provider returns
// nothing.
type Locator struct {
	p           provider.Interface
	maxAttempts int
	delta       float64
	log         *slog.Logger
}

// NewLocator builds a Locator over p. maxAttempts <= 0 and delta <= 0
// fall back to the defaults.
func NewLocator(p provider.Interface, maxAttempts int, delta float64, log *slog.Logger) *Locator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delta <= 0 {
		delta = DefaultDelta
	}
	if log == nil {
		log = slog.Default()
	}
	return &Locator{p: p, maxAttempts: maxAttempts, delta: delta, log: log}
}

// Resolve returns the seed segment for loc.
//
// Fails INVALID_INPUT when zero or more than one location form is
// supplied, NOT_FOUND when the search exhausts its attempts or the id is
// unknown, and PROVIDER_ERROR when the provider fails.
func (l *Locator) Resolve(ctx context.Context, loc Location) (geo.Segment, error) {
	box, forms, err := loc.box()
	if err != nil {
		return geo.Segment{}, wrapError(ErrCodeInvalidInput, "bad location", err)
	}
	switch {
	case forms == 0:
		return geo.Segment{}, newError(ErrCodeInvalidInput, "a location is required: bbox, lat/long, coordinate pair, or feature id")
	case forms > 1:
		return geo.Segment{}, newError(ErrCodeInvalidInput, "exactly one location form may be given")
	}

	if loc.FeatureID != "" {
		return l.locateByID(ctx, loc.FeatureID)
	}
	return l.locateByBBox(ctx, *box)
}

// locateByID delegates to the provider's id lookup.
func (l *Locator) locateByID(ctx context.Context, id string) (geo.Segment, error) {
	seg, err := l.p.Get(ctx, id)
	if errors.Is(err, provider.ErrNotFound) {
		return geo.Segment{}, wrapError(ErrCodeNotFound, fmt.Sprintf("no feature with id %q", id), err)
	}
	if err != nil {
		return geo.Segment{}, wrapError(ErrCodeProvider, "id lookup failed", err)
	}
	return seg, nil
}

// locateByBBox queries for segments intersecting the box, sequence
// ascending so the downstream-most candidate comes first. Empty results
// expand the box by delta per edge and retry, up to maxAttempts; this is
// the engine's only local retry loop.
func (l *Locator) locateByBBox(ctx context.Context, box geo.BBox) (geo.Segment, error) {
	q := provider.Query{
		Sort: []provider.Sort{{Property: geo.FieldSequence, Descending: false}},
	}

	for attempt := 1; ; attempt++ {
		b := box
		q.BBox = &b

		segs, err := l.p.Query(ctx, q)
		if err != nil {
			return geo.Segment{}, wrapError(ErrCodeProvider, "seed query failed", err)
		}
		if len(segs) > 0 {
			// Sorted sequence-ascending: the first candidate is the one
			// closest to the outlet within the matched set.
			return segs[0], nil
		}
		if attempt >= l.maxAttempts {
			return geo.Segment{}, newError(ErrCodeNotFound,
				fmt.Sprintf("no features found after %d attempts", l.maxAttempts))
		}

		box = box.Expand(l.delta)
		l.log.Debug("seed search empty, expanding box",
			"attempt", attempt,
			"delta", l.delta,
			"bbox", box.Slice(),
		)
	}
}

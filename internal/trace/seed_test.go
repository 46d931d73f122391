package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrologic/mainstem/internal/geo"
)

func ptr(v float64) *float64 { return &v }

func TestLocator_Resolve_ExactlyOneForm(t *testing.T) {
	l := NewLocator(newFakeProvider(), 0, 0, nil)

	tests := []struct {
		name string
		loc  Location
	}{
		{"no form at all", Location{}},
		{"bbox and feature id", Location{
			BBox:      &geo.BBox{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1},
			FeatureID: "seg1",
		}},
		{"lat/long and point", Location{
			Lat: ptr(39.0), Lon: ptr(-94.5), Point: []float64{-94.5, 39.0},
		}},
		{"lat without lon", Location{Lat: ptr(39.0)}},
		{"point with wrong arity", Location{Point: []float64{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Resolve(context.Background(), tt.loc)
			require.Error(t, err)
			assert.True(t, IsInvalidInput(err), "want INVALID_INPUT, got %v", err)
		})
	}
}

func TestLocator_Resolve_ByFeatureID(t *testing.T) {
	seg := geo.Segment{ID: "seg1", PathID: 10, Sequence: 100}
	l := NewLocator(newFakeProvider(seg), 0, 0, nil)

	got, err := l.Resolve(context.Background(), Location{FeatureID: "seg1"})
	require.NoError(t, err)
	assert.Equal(t, "seg1", got.ID)

	_, err = l.Resolve(context.Background(), Location{FeatureID: "nope"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLocator_Resolve_PicksDownstreamMostCandidate(t *testing.T) {
	// Two segments intersect the box; the one closer to the outlet
	// (lower sequence) wins.
	upstream := geo.Segment{
		ID: "up", PathID: 10, Sequence: 200,
		Geometry: orb.LineString{{0, 0}, {0.1, 0.1}},
	}
	downstream := geo.Segment{
		ID: "down", PathID: 10, Sequence: 100,
		Geometry: orb.LineString{{0, 0}, {0.1, 0.1}},
	}
	l := NewLocator(newFakeProvider(upstream, downstream), 0, 0, nil)

	got, err := l.Resolve(context.Background(), Location{
		BBox: &geo.BBox{MinLon: -0.05, MinLat: -0.05, MaxLon: 0.05, MaxLat: 0.05},
	})
	require.NoError(t, err)
	assert.Equal(t, "down", got.ID)
}

func TestLocator_Resolve_ExpandsUntilHit(t *testing.T) {
	// The segment sits 0.02 degrees outside the initial point box, so
	// the first attempt misses and the first expansion reaches it.
	seg := geo.Segment{
		ID: "seg1", PathID: 10, Sequence: 100,
		Geometry: orb.LineString{{0.02, 0.0}, {0.1, 0.0}},
	}
	p := newFakeProvider(seg)
	l := NewLocator(p, 3, 0.025, nil)

	got, err := l.Resolve(context.Background(), Location{Point: []float64{0, 0}})
	require.NoError(t, err)
	assert.Equal(t, "seg1", got.ID)
	assert.Equal(t, 2, p.queries)
}

func TestLocator_Resolve_NotFoundAfterMaxAttempts(t *testing.T) {
	seg := geo.Segment{
		ID: "far", PathID: 10, Sequence: 100,
		Geometry: orb.LineString{{50, 50}, {50.1, 50.1}},
	}
	p := newFakeProvider(seg)
	l := NewLocator(p, 3, 0.025, nil)

	_, err := l.Resolve(context.Background(), Location{Point: []float64{0, 0}})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 3, p.queries)
}

func TestLocator_Resolve_LatLonNormalizesToPointBox(t *testing.T) {
	seg := geo.Segment{
		ID: "seg1", PathID: 10, Sequence: 100,
		Geometry: orb.LineString{{-94.58, 39.07}, {-94.57, 39.08}},
	}
	l := NewLocator(newFakeProvider(seg), 0, 0, nil)

	got, err := l.Resolve(context.Background(), Location{Lat: ptr(39.07), Lon: ptr(-94.58)})
	require.NoError(t, err)
	assert.Equal(t, "seg1", got.ID)
}

func TestLocator_Resolve_ProviderFailure(t *testing.T) {
	p := newFakeProvider()
	p.queryErr = errors.New("timeout")
	l := NewLocator(p, 0, 0, nil)

	_, err := l.Resolve(context.Background(), Location{Point: []float64{0, 0}})
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Equal(t, 1, p.queries)
}

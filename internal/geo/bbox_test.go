package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBBoxFromSlice(t *testing.T) {
	b, err := BBoxFromSlice([]float64{-94.6, 39.0, -94.5, 39.1})
	require.NoError(t, err)
	assert.Equal(t, BBox{MinLon: -94.6, MinLat: 39.0, MaxLon: -94.5, MaxLat: 39.1}, b)

	_, err = BBoxFromSlice([]float64{1, 2, 3})
	require.Error(t, err)
}

func TestBBox_Slice_RoundTrip(t *testing.T) {
	in := []float64{-94.6, 39.0, -94.5, 39.1}
	b, err := BBoxFromSlice(in)
	require.NoError(t, err)
	assert.Equal(t, in, b.Slice())
}

func TestPointBox(t *testing.T) {
	b := PointBox(-94.58, 39.07)
	assert.Equal(t, b.MinLon, b.MaxLon)
	assert.Equal(t, b.MinLat, b.MaxLat)
	assert.Equal(t, -94.58, b.MinLon)
	assert.Equal(t, 39.07, b.MinLat)
}

func TestBBox_Expand(t *testing.T) {
	tests := []struct {
		name  string
		in    BBox
		delta float64
		want  BBox
	}{
		{
			name:  "interior box grows on every edge",
			in:    BBox{MinLon: -94.6, MinLat: 39.0, MaxLon: -94.5, MaxLat: 39.1},
			delta: 0.025,
			want:  BBox{MinLon: -94.625, MinLat: 38.975, MaxLon: -94.475, MaxLat: 39.125},
		},
		{
			name:  "degenerate point box becomes a real box",
			in:    PointBox(0, 0),
			delta: 0.025,
			want:  BBox{MinLon: -0.025, MinLat: -0.025, MaxLon: 0.025, MaxLat: 0.025},
		},
		{
			name:  "longitude wraps at the antimeridian",
			in:    BBox{MinLon: 179.99, MinLat: 0, MaxLon: 179.99, MaxLat: 0},
			delta: 0.025,
			// 179.99+0.025 folds to -179.985; min/max reduction reorders.
			want: BBox{MinLon: -179.985, MinLat: -0.025, MaxLon: 179.965, MaxLat: 0.025},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Expand(tt.delta)
			assert.InDelta(t, tt.want.MinLon, got.MinLon, 1e-9)
			assert.InDelta(t, tt.want.MinLat, got.MinLat, 1e-9)
			assert.InDelta(t, tt.want.MaxLon, got.MaxLon, 1e-9)
			assert.InDelta(t, tt.want.MaxLat, got.MaxLat, 1e-9)
		})
	}
}

func TestBBox_Expand_AlwaysWellFormed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := BBox{
			MinLon: rapid.Float64Range(-180, 180).Draw(t, "minLon"),
			MinLat: rapid.Float64Range(-90, 90).Draw(t, "minLat"),
			MaxLon: rapid.Float64Range(-180, 180).Draw(t, "maxLon"),
			MaxLat: rapid.Float64Range(-90, 90).Draw(t, "maxLat"),
		}
		delta := rapid.Float64Range(0, 10).Draw(t, "delta")

		got := b.Expand(delta)

		if got.MinLon > got.MaxLon || got.MinLat > got.MaxLat {
			t.Fatalf("expanded box inverted: %+v", got)
		}
		if got.MinLon < -180 || got.MaxLon > 180 || got.MinLat < -90 || got.MaxLat > 90 {
			t.Fatalf("expanded box out of range: %+v", got)
		}
	})
}

func TestWrap(t *testing.T) {
	tests := []struct {
		v, limit, want float64
	}{
		{0, 180, 0},
		{180, 180, -180},
		{-180.5, 180, 179.5},
		{181, 180, -179},
		{91, 90, -89},
		{-91, 90, 89},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, wrap(tt.v, tt.limit), 1e-9, "wrap(%v, %v)", tt.v, tt.limit)
	}
}

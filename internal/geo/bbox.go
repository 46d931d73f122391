package geo

import (
	"fmt"
	"math"
)

// BBox is a geographic bounding box in lon/lat order (WGS84).
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// PointBox builds a degenerate box around a single coordinate pair.
func PointBox(lon, lat float64) BBox {
	return BBox{MinLon: lon, MinLat: lat, MaxLon: lon, MaxLat: lat}
}

// BBoxFromSlice builds a box from a [minLon, minLat, maxLon, maxLat]
// slice, the order used on the wire.
func BBoxFromSlice(v []float64) (BBox, error) {
	if len(v) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 values, got %d", len(v))
	}
	return BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}, nil
}

// Slice returns the box as [minLon, minLat, maxLon, maxLat].
func (b BBox) Slice() []float64 {
	return []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// Expand grows the box outward by delta on every edge. Each expanded
// coordinate is wrapped back into range modularly (longitude at ±180,
// latitude at ±90), and the result is re-derived as a well-formed box by
// independent min/max reduction over the wrapped corner pairs. The
// returned box therefore always satisfies Min <= Max on both axes and
// stays inside [-180,180] x [-90,90].
func (b BBox) Expand(delta float64) BBox {
	lons := [2]float64{
		wrap(b.MinLon-delta, 180),
		wrap(b.MaxLon+delta, 180),
	}
	lats := [2]float64{
		wrap(b.MinLat-delta, 90),
		wrap(b.MaxLat+delta, 90),
	}
	return BBox{
		MinLon: math.Min(lons[0], lons[1]),
		MinLat: math.Min(lats[0], lats[1]),
		MaxLon: math.Max(lons[0], lons[1]),
		MaxLat: math.Max(lats[0], lats[1]),
	}
}

// wrap folds v into [-limit, limit] modularly, so stepping past one edge
// re-enters from the other.
func wrap(v, limit float64) float64 {
	span := 2 * limit
	v = math.Mod(v+limit, span)
	if v < 0 {
		v += span
	}
	return v - limit
}

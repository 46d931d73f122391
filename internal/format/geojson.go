// Package format encodes trace results for the wire: GeoJSON feature
// collections (the default) and a flat CSV attribute export.
package format

import (
	"github.com/paulmach/orb/geojson"

	"github.com/hydrologic/mainstem/internal/geo"
)

// GeoJSON encodes a feature collection.
func GeoJSON(features []geo.Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		nf := geojson.NewFeature(f.Geometry)
		if f.ID != "" {
			nf.ID = f.ID
		}
		if len(f.Props) > 0 {
			nf.Properties = geojson.Properties(f.Props)
		}
		fc.Append(nf)
	}
	return fc.MarshalJSON()
}

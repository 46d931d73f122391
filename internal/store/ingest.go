package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hydrologic/mainstem/internal/geo"
)

// Ingest bulk-loads a GeoJSON FeatureCollection into the index. Existing
// rows with the same id are replaced, so re-ingesting a snapshot is
// idempotent. All rows load in one transaction.
//
// Each feature must carry LineString geometry (a single-strand
// MultiLineString is unwrapped) and the required attributes pathId and
// sequence; nextPathId, nextSequence, and downstreamPathChain default to
// zero values when absent. Every other property is kept as a
// pass-through attribute and its name recorded for KnownFields.
func (s *Store) Ingest(ctx context.Context, data []byte) (int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return 0, fmt.Errorf("decode feature collection: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO segments
			(id, path_id, sequence, next_path_id, next_sequence, downstream_path_chain,
			 min_lon, min_lat, max_lon, max_lat, geometry, props)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	fieldNames := map[string]struct{}{}
	count := 0
	for i, f := range fc.Features {
		seg, props, err := segmentFromFeature(f)
		if err != nil {
			return 0, fmt.Errorf("feature %d: %w", i, err)
		}

		geomJSON, err := geojson.NewGeometry(seg.Geometry).MarshalJSON()
		if err != nil {
			return 0, fmt.Errorf("feature %d: encode geometry: %w", i, err)
		}
		propsJSON, err := json.Marshal(props)
		if err != nil {
			return 0, fmt.Errorf("feature %d: encode props: %w", i, err)
		}

		bound := seg.Geometry.Bound()
		if _, err := insert.ExecContext(ctx,
			seg.ID, seg.PathID, seg.Sequence, seg.NextPathID, seg.NextSequence,
			seg.DownstreamChain,
			bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1],
			string(geomJSON), string(propsJSON),
		); err != nil {
			return 0, fmt.Errorf("feature %d: insert: %w", i, err)
		}

		for name := range props {
			fieldNames[name] = struct{}{}
		}
		count++
	}

	for name := range fieldNames {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO fields (name) VALUES (?)`, name); err != nil {
			return 0, fmt.Errorf("record field %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ingest: %w", err)
	}

	if err := s.reloadFields(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// segmentFromFeature maps a GeoJSON feature onto the segment model,
// splitting required attributes from pass-through props.
func segmentFromFeature(f *geojson.Feature) (geo.Segment, map[string]any, error) {
	var seg geo.Segment

	switch g := f.Geometry.(type) {
	case orb.LineString:
		seg.Geometry = g
	case orb.MultiLineString:
		if len(g) != 1 {
			return seg, nil, fmt.Errorf("geometry has %d strands, want 1", len(g))
		}
		seg.Geometry = g[0]
	default:
		return seg, nil, fmt.Errorf("geometry is %T, want LineString", f.Geometry)
	}

	seg.ID = featureID(f)
	if seg.ID == "" {
		return seg, nil, fmt.Errorf("feature has no id")
	}

	pathID, ok := toInt64(f.Properties[geo.FieldPathID])
	if !ok {
		return seg, nil, fmt.Errorf("missing or non-numeric %s", geo.FieldPathID)
	}
	sequence, ok := toFloat64(f.Properties[geo.FieldSequence])
	if !ok {
		return seg, nil, fmt.Errorf("missing or non-numeric %s", geo.FieldSequence)
	}
	seg.PathID = pathID
	seg.Sequence = sequence
	seg.NextPathID, _ = toInt64(f.Properties[geo.FieldNextPathID])
	seg.NextSequence, _ = toFloat64(f.Properties[geo.FieldNextSequence])
	seg.DownstreamChain, _ = f.Properties[geo.FieldDownstreamChain].(string)

	props := map[string]any{}
	for k, v := range f.Properties {
		switch k {
		case geo.FieldID, geo.FieldPathID, geo.FieldSequence,
			geo.FieldNextPathID, geo.FieldNextSequence, geo.FieldDownstreamChain:
		default:
			props[k] = v
		}
	}
	return seg, props, nil
}

// featureID prefers the GeoJSON id member, falling back to an id
// property.
func featureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	}
	if v, ok := f.Properties[geo.FieldID]; ok {
		switch id := v.(type) {
		case string:
			return id
		case float64:
			return fmt.Sprintf("%.0f", id)
		}
	}
	return ""
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

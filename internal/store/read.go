package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/provider"
)

// Query returns the segments matching q in deterministic order.
// An empty result is an empty slice, not an error.
func (s *Store) Query(ctx context.Context, q provider.Query) ([]geo.Segment, error) {
	stmt, params, err := compileQuery(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	segments := []geo.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}

	return segments, nil
}

// Get returns the segment with the given id, or provider.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (geo.Segment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM segments WHERE id = ?", id)

	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return geo.Segment{}, provider.ErrNotFound
	}
	if err != nil {
		return geo.Segment{}, err
	}
	return seg, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanSegment decodes one row into a segment: typed columns straight
// through, geometry from its GeoJSON encoding, pass-through attributes
// from the props blob.
func scanSegment(sc scanner) (geo.Segment, error) {
	var (
		seg          geo.Segment
		geometryJSON string
		propsJSON    string
	)
	if err := sc.Scan(
		&seg.ID,
		&seg.PathID,
		&seg.Sequence,
		&seg.NextPathID,
		&seg.NextSequence,
		&seg.DownstreamChain,
		&geometryJSON,
		&propsJSON,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return geo.Segment{}, err
		}
		return geo.Segment{}, fmt.Errorf("scan segment: %w", err)
	}

	g, err := geojson.UnmarshalGeometry([]byte(geometryJSON))
	if err != nil {
		return geo.Segment{}, fmt.Errorf("decode geometry for %s: %w", seg.ID, err)
	}
	line, ok := g.Geometry().(orb.LineString)
	if !ok {
		return geo.Segment{}, fmt.Errorf("segment %s: geometry is %T, want LineString", seg.ID, g.Geometry())
	}
	seg.Geometry = line

	if propsJSON != "" {
		if err := json.Unmarshal([]byte(propsJSON), &seg.Props); err != nil {
			return geo.Segment{}, fmt.Errorf("decode props for %s: %w", seg.ID, err)
		}
	}

	return seg, nil
}

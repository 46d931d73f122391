package store

import (
	"fmt"
	"strings"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/provider"
)

// columns maps public attribute names to segment table columns. Anything
// not listed here lives in the props JSON blob.
var columns = map[string]string{
	geo.FieldID:              "id",
	geo.FieldPathID:          "path_id",
	geo.FieldSequence:        "sequence",
	geo.FieldNextPathID:      "next_path_id",
	geo.FieldNextSequence:    "next_sequence",
	geo.FieldDownstreamChain: "downstream_path_chain",
}

const selectColumns = `id, path_id, sequence, next_path_id, next_sequence, downstream_path_chain, geometry, props`

// compileQuery converts a provider query into parameterized SQL. Values
// are never interpolated.
//
// Every query gets a deterministic ORDER BY: the caller's sort terms
// first, then an id tiebreaker, so identical queries return identical
// row order across runs. The trim-boundary tie-break upstream depends on
// this stability.
func compileQuery(q provider.Query) (string, []any, error) {
	var where []string
	var params []any

	if len(q.Conditions) > 0 {
		parts := make([]string, 0, len(q.Conditions))
		for _, c := range q.Conditions {
			expr, err := fieldExpr(c.Name)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, expr+" = ?")
			params = append(params, c.Value)
		}
		joiner := " AND "
		if q.Combine == provider.CombineOr {
			joiner = " OR "
		}
		where = append(where, "("+strings.Join(parts, joiner)+")")
	}

	if q.BBox != nil {
		// Envelope intersection: the segment's envelope overlaps the
		// query box on both axes.
		where = append(where, "(min_lon <= ? AND max_lon >= ? AND min_lat <= ? AND max_lat >= ?)")
		params = append(params, q.BBox.MaxLon, q.BBox.MinLon, q.BBox.MaxLat, q.BBox.MinLat)
	}

	sql := "SELECT " + selectColumns + " FROM segments"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}

	order, err := compileOrder(q.Sort)
	if err != nil {
		return "", nil, err
	}
	sql += " ORDER BY " + order

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sql += " LIMIT ? OFFSET ?"
	params = append(params, limit, q.Offset)

	return sql, params, nil
}

// compileOrder renders the sort terms plus the stable id tiebreaker.
func compileOrder(sorts []provider.Sort) (string, error) {
	var parts []string
	for _, s := range sorts {
		expr, err := fieldExpr(s.Property)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}
	parts = append(parts, "id COLLATE BINARY ASC")
	return strings.Join(parts, ", "), nil
}

// fieldExpr returns the SQL expression for a public attribute name:
// either a table column or a json_extract over the props blob. The name
// itself is validated (it becomes part of the SQL text) while all values
// stay parameterized.
func fieldExpr(name string) (string, error) {
	if col, ok := columns[name]; ok {
		return col, nil
	}
	if !validFieldName(name) {
		return "", fmt.Errorf("invalid field name %q", name)
	}
	return fmt.Sprintf("json_extract(props, '$.%s')", name), nil
}

// validFieldName restricts prop names to identifier characters so they
// are safe to embed in a json_extract path.
func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

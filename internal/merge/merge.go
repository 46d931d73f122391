// Package merge consolidates contiguous runs of traced segments that
// share chosen attribute values into single multi-line features.
//
// Merging is geometric concatenation only: each member's polyline becomes
// one strand of the output MultiLineString. No dissolve, reprojection, or
// simplification happens here.
package merge

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/text/unicode/norm"

	"github.com/hydrologic/mainstem/internal/geo"
)

// Outcome tags the result of ByAttributes: either the input was merged,
// or grouping was skipped because a key is not a recognized attribute.
type Outcome int

const (
	// Merged means grouping ran and the output is the merged collection.
	Merged Outcome = iota
	// SkippedUnknownField means a group key is not a known attribute;
	// the ungrouped input was returned unchanged. Not an error.
	SkippedUnknownField
)

// ByAttributes merges contiguous same-key runs of segments into
// consolidated multi-line features.
//
// The input must already be ordered so that members of a group are
// contiguous; the tracer guarantees this when ordering was planned with
// grouping forced. A new group starts whenever the tuple of key values
// differs from the immediately preceding segment's tuple. Each group
// yields one feature whose geometry concatenates the members' polylines
// as independent strands and whose attributes are exactly the group-key
// values; everything else is dropped. Output order is group discovery
// order.
//
// Non-adjacent runs sharing a key tuple are NOT coalesced: two separated
// stretches with identical keys yield two output features. Disjoint
// stretches of the flow path stay distinct.
//
// Group-key names are NFC-normalized and checked against knownFields; if
// any key is unrecognized the ungrouped input is returned unchanged with
// Outcome SkippedUnknownField.
func ByAttributes(segments []geo.Segment, groupKeys []string, knownFields map[string]struct{}) ([]geo.Feature, Outcome) {
	keys := make([]string, len(groupKeys))
	for i, k := range groupKeys {
		keys[i] = norm.NFC.String(k)
	}
	for _, k := range keys {
		if _, ok := knownFields[k]; !ok {
			return geo.Features(segments), SkippedUnknownField
		}
	}
	if len(segments) == 0 || len(keys) == 0 {
		return geo.Features(segments), Merged
	}

	// One pass: record each group's [start, end) range in first-seen
	// order. The first segment always starts group 0.
	type span struct{ start, end int }
	var groups []span
	prev := keyTuple(&segments[0], keys)
	groups = append(groups, span{start: 0})
	for i := 1; i < len(segments); i++ {
		cur := keyTuple(&segments[i], keys)
		if cur != prev {
			groups[len(groups)-1].end = i
			groups = append(groups, span{start: i})
			prev = cur
		}
	}
	groups[len(groups)-1].end = len(segments)

	out := make([]geo.Feature, 0, len(groups))
	for _, g := range groups {
		members := segments[g.start:g.end]

		strands := make(orb.MultiLineString, 0, len(members))
		for i := range members {
			strands = append(strands, members[i].Geometry)
		}

		props := make(map[string]any, len(keys))
		for _, k := range keys {
			if v, ok := members[0].Attr(k); ok {
				props[k] = v
			}
		}

		out = append(out, geo.Feature{
			ID:       members[0].ID,
			Geometry: strands,
			Props:    props,
		})
	}
	return out, Merged
}

// keyTuple renders the group-key values of a segment as a comparable
// string. Missing attributes contribute an empty component, so two
// segments both lacking a key still group together.
func keyTuple(s *geo.Segment, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if v, ok := s.Attr(k); ok {
			parts[i] = fmt.Sprintf("%v", v)
		}
	}
	return strings.Join(parts, "\x1f")
}

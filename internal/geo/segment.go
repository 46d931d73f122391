package geo

import (
	"github.com/paulmach/orb"
)

// Public attribute names of the required segment fields. Providers map
// these onto their own column or field names; everything above the
// provider layer speaks in these.
const (
	FieldID              = "id"
	FieldPathID          = "pathId"
	FieldSequence        = "sequence"
	FieldNextPathID      = "nextPathId"
	FieldNextSequence    = "nextSequence"
	FieldDownstreamChain = "downstreamPathChain"
)

// Segment is one directed reach of a drainage network.
//
// PathID groups hydrologically equivalent reaches into a path; Sequence
// strictly decreases in the downstream direction within one path.
// NextPathID/NextSequence locate the hand-off point on the next
// downstream path. DownstreamChain is the comma-delimited list of path
// ids from this segment's path to the outlet.
//
// Props carries pass-through attributes retained only for merging and
// output; the engine never interprets them.
type Segment struct {
	ID              string
	Geometry        orb.LineString
	PathID          int64
	Sequence        float64
	NextPathID      int64
	NextSequence    float64
	DownstreamChain string
	Props           map[string]any
}

// Attr resolves a public attribute name to its value. Typed fields win
// over Props entries of the same name.
func (s *Segment) Attr(name string) (any, bool) {
	switch name {
	case FieldID:
		return s.ID, true
	case FieldPathID:
		return s.PathID, true
	case FieldSequence:
		return s.Sequence, true
	case FieldNextPathID:
		return s.NextPathID, true
	case FieldNextSequence:
		return s.NextSequence, true
	case FieldDownstreamChain:
		return s.DownstreamChain, true
	}
	v, ok := s.Props[name]
	return v, ok
}

// Feature converts the segment to a generic output feature. Required
// fields appear alongside the pass-through attributes; the Props map is
// copied so callers can't reach back into the segment.
func (s *Segment) Feature() Feature {
	props := make(map[string]any, len(s.Props)+5)
	for k, v := range s.Props {
		props[k] = v
	}
	props[FieldPathID] = s.PathID
	props[FieldSequence] = s.Sequence
	props[FieldNextPathID] = s.NextPathID
	props[FieldNextSequence] = s.NextSequence
	props[FieldDownstreamChain] = s.DownstreamChain

	return Feature{
		ID:       s.ID,
		Geometry: s.Geometry,
		Props:    props,
	}
}

// Feature is an element of the engine's output collections. Geometry is a
// LineString for plain traced segments and a MultiLineString for merged
// groups.
type Feature struct {
	ID       string
	Geometry orb.Geometry
	Props    map[string]any
}

// Features converts a traced segment slice to an output collection,
// preserving order.
func Features(segments []Segment) []Feature {
	out := make([]Feature, len(segments))
	for i := range segments {
		out[i] = segments[i].Feature()
	}
	return out
}

// TrimBoundary bounds the retained portion of one path: a segment on
// PathID is kept iff its sequence is <= Threshold.
type TrimBoundary struct {
	PathID    int64
	Threshold float64
}

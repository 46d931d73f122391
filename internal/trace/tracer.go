package trace

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/provider"
)

// DefaultQueryLimit bounds the bulk member query. Generous: a mainstem
// chain is rarely more than a few thousand reaches.
const DefaultQueryLimit = 10000

// Tracer walks the flow path from a seed segment down to the outlet and
// trims overlapping segments at the chain hand-off points.
type Tracer struct {
	p     provider.Interface
	limit int
	log   *slog.Logger
}

// NewTracer builds a Tracer over p. limit <= 0 falls back to
// DefaultQueryLimit.
func NewTracer(p provider.Interface, limit int, log *slog.Logger) *Tracer {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracer{p: p, limit: limit, log: log}
}

// Trace returns the retained flow path from seed to the outlet, in the
// given order.
//
// The seed's downstream chain names every path between it and the outlet.
// All member segments of those paths are fetched in one OR query; for
// each path the downstream-most member reached within the result set
// yields the trim boundary for the next path in the chain, and the seed
// itself bounds its own path so nothing upstream of the requested start
// survives. Exactly the segments satisfying some boundary are returned
// as a new collection, grouped by path in chain order with the requested
// sort preserved within each path.
//
// Fails INVALID_INPUT when the seed carries no downstream chain at all;
// provider failures surface as PROVIDER_ERROR and are not retried.
func (t *Tracer) Trace(ctx context.Context, seed geo.Segment, order []provider.Sort) ([]geo.Segment, error) {
	if seed.DownstreamChain == "" {
		return nil, newError(ErrCodeInvalidInput, "seed segment has no downstream path chain")
	}

	paths := t.chainPaths(seed)

	conditions := make([]provider.Condition, 0, len(paths))
	for _, p := range paths {
		conditions = append(conditions, provider.Condition{Name: geo.FieldPathID, Value: p})
	}

	members, err := t.p.Query(ctx, provider.Query{
		Conditions: conditions,
		Combine:    provider.CombineOr,
		Sort:       order,
		Limit:      t.limit,
	})
	if err != nil {
		return nil, wrapError(ErrCodeProvider, "member query failed", err)
	}

	boundaries := deriveBoundaries(paths, members, seed)

	// Walk paths in chain order so each path's members form one
	// contiguous run in the output; within a path, provider order (the
	// requested sort) is preserved. Grouping downstream depends on this
	// contiguity.
	retained := make([]geo.Segment, 0, len(members))
	for _, path := range paths {
		for _, seg := range members {
			if seg.PathID != path {
				continue
			}
			if withinBoundaries(seg, boundaries) {
				retained = append(retained, seg)
			}
		}
	}

	t.log.Debug("trace complete",
		"seed", seed.ID,
		"paths", len(paths),
		"members", len(members),
		"retained", len(retained),
	)
	return retained, nil
}

// chainPaths returns the seed's own path followed by the parsed
// downstream chain, duplicates removed, order preserved. Unparseable
// chain entries are logged and skipped; a bad entry never fails a trace.
func (t *Tracer) chainPaths(seed geo.Segment) []int64 {
	seen := map[int64]struct{}{seed.PathID: {}}
	paths := []int64{seed.PathID}

	for _, raw := range strings.Split(seed.DownstreamChain, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			t.log.Warn("skipping unparseable chain entry",
				"seed", seed.ID,
				"entry", raw,
			)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		paths = append(paths, id)
	}
	return paths
}

// deriveBoundaries computes the trim boundary set: for each path, the
// member with minimum sequence present in the result set marks the
// downstream-most point reached, and its next-path hand-off bounds the
// next path in the chain. The seed's own (pathId, sequence) is always a
// boundary, trimming everything upstream of the requested start.
//
// Ties on minimum sequence go to the first member encountered in
// provider order.
func deriveBoundaries(paths []int64, members []geo.Segment, seed geo.Segment) []geo.TrimBoundary {
	boundaries := make([]geo.TrimBoundary, 0, len(paths)+1)

	for _, path := range paths {
		var min *geo.Segment
		for i := range members {
			if members[i].PathID != path {
				continue
			}
			if min == nil || members[i].Sequence < min.Sequence {
				min = &members[i]
			}
		}
		if min == nil {
			continue
		}
		boundaries = append(boundaries, geo.TrimBoundary{
			PathID:    min.NextPathID,
			Threshold: min.NextSequence,
		})
	}

	boundaries = append(boundaries, geo.TrimBoundary{
		PathID:    seed.PathID,
		Threshold: seed.Sequence,
	})
	return boundaries
}

// withinBoundaries reports whether some boundary retains the segment:
// matching path id and sequence at or below the threshold.
func withinBoundaries(seg geo.Segment, boundaries []geo.TrimBoundary) bool {
	for _, b := range boundaries {
		if seg.PathID == b.PathID && seg.Sequence <= b.Threshold {
			return true
		}
	}
	return false
}

// Filter re-applies a boundary set to a collection, returning the
// retained segments as a new slice in input order. Applying the same
// boundaries to an already-filtered collection is a no-op.
func Filter(segments []geo.Segment, boundaries []geo.TrimBoundary) []geo.Segment {
	out := make([]geo.Segment, 0, len(segments))
	for _, seg := range segments {
		if withinBoundaries(seg, boundaries) {
			out = append(out, seg)
		}
	}
	return out
}

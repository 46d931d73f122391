package trace

import (
	"context"
	"fmt"
	"sort"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/provider"
)

// fakeProvider is an in-memory provider.Interface for engine tests. It
// honors conditions, bbox overlap against each segment's geometry bound,
// sorting, and limits the same way the real backends do.
type fakeProvider struct {
	segments []geo.Segment
	fields   map[string]struct{}
	queries  int
	queryErr error
}

func newFakeProvider(segments ...geo.Segment) *fakeProvider {
	fields := map[string]struct{}{
		geo.FieldID:              {},
		geo.FieldPathID:          {},
		geo.FieldSequence:        {},
		geo.FieldNextPathID:      {},
		geo.FieldNextSequence:    {},
		geo.FieldDownstreamChain: {},
	}
	for _, s := range segments {
		for k := range s.Props {
			fields[k] = struct{}{}
		}
	}
	return &fakeProvider{segments: segments, fields: fields}
}

func (f *fakeProvider) Query(_ context.Context, q provider.Query) ([]geo.Segment, error) {
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	out := []geo.Segment{}
	for _, s := range f.segments {
		if q.BBox != nil && !overlaps(s, *q.BBox) {
			continue
		}
		if len(q.Conditions) > 0 && !matches(s, q.Conditions, q.Combine) {
			continue
		}
		out = append(out, s)
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, term := range q.Sort {
				a, _ := out[i].Attr(term.Property)
				b, _ := out[j].Attr(term.Property)
				af, bf := toF(a), toF(b)
				if af == bf {
					continue
				}
				if term.Descending {
					return af > bf
				}
				return af < bf
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeProvider) Get(_ context.Context, id string) (geo.Segment, error) {
	for _, s := range f.segments {
		if s.ID == id {
			return s, nil
		}
	}
	return geo.Segment{}, provider.ErrNotFound
}

func (f *fakeProvider) KnownFields() map[string]struct{} {
	return f.fields
}

func overlaps(s geo.Segment, b geo.BBox) bool {
	bound := s.Geometry.Bound()
	return bound.Min[0] <= b.MaxLon && bound.Max[0] >= b.MinLon &&
		bound.Min[1] <= b.MaxLat && bound.Max[1] >= b.MinLat
}

func matches(s geo.Segment, conditions []provider.Condition, combine provider.Combine) bool {
	for _, c := range conditions {
		v, ok := s.Attr(c.Name)
		hit := ok && fmt.Sprintf("%v", v) == fmt.Sprintf("%v", c.Value)
		if combine == provider.CombineOr && hit {
			return true
		}
		if combine == provider.CombineAnd && !hit {
			return false
		}
	}
	return combine == provider.CombineAnd
}

func toF(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

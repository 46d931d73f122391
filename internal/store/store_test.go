package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/provider"
)

// networkGeoJSON is the two-path test network: path 10 flows into
// path 20 at seg4's hand-off.
const networkGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "seg1",
     "geometry": {"type": "LineString", "coordinates": [[-94.70, 39.00], [-94.69, 39.01]]},
     "properties": {"pathId": 10, "sequence": 150, "downstreamPathChain": "20", "name": "Kaw"}},
    {"type": "Feature", "id": "seg2",
     "geometry": {"type": "LineString", "coordinates": [[-94.60, 39.05], [-94.59, 39.06]]},
     "properties": {"pathId": 10, "sequence": 100, "downstreamPathChain": "20", "name": "Kaw"}},
    {"type": "Feature", "id": "seg3",
     "geometry": {"type": "LineString", "coordinates": [[-94.50, 39.10], [-94.49, 39.11]]},
     "properties": {"pathId": 10, "sequence": 80, "downstreamPathChain": "20", "name": "Kaw"}},
    {"type": "Feature", "id": "seg4",
     "geometry": {"type": "LineString", "coordinates": [[-94.40, 39.12], [-94.39, 39.13]]},
     "properties": {"pathId": 10, "sequence": 60, "nextPathId": 20, "nextSequence": 500, "downstreamPathChain": "20", "name": "Kaw"}},
    {"type": "Feature", "id": "seg5",
     "geometry": {"type": "LineString", "coordinates": [[-94.30, 39.14], [-94.29, 39.15]]},
     "properties": {"pathId": 20, "sequence": 500, "name": "Missouri"}},
    {"type": "Feature", "id": "seg6",
     "geometry": {"type": "LineString", "coordinates": [[-94.20, 39.16], [-94.19, 39.17]]},
     "properties": {"pathId": 20, "sequence": 600, "name": "Missouri"}}
  ]
}`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "network.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ingestedStore(t *testing.T) *Store {
	t.Helper()
	s := openTestStore(t)
	n, err := s.Ingest(context.Background(), []byte(networkGeoJSON))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_AppliesSchema(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"segments", "fields"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		require.NoError(t, err, "table %q not found", table)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}
}

func TestKnownFields_AlwaysIncludesRequired(t *testing.T) {
	s := openTestStore(t)

	fields := s.KnownFields()
	for _, name := range []string{
		geo.FieldID, geo.FieldPathID, geo.FieldSequence,
		geo.FieldNextPathID, geo.FieldNextSequence, geo.FieldDownstreamChain,
	} {
		assert.Contains(t, fields, name)
	}
}

func TestIngest_RecordsPassThroughFields(t *testing.T) {
	s := ingestedStore(t)

	fields := s.KnownFields()
	assert.Contains(t, fields, "name")
	assert.NotContains(t, fields, "pathid") // names are case-sensitive
}

func TestIngest_Reingest_Idempotent(t *testing.T) {
	s := ingestedStore(t)

	n, err := s.Ingest(context.Background(), []byte(networkGeoJSON))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	segs, err := s.Query(context.Background(), provider.Query{})
	require.NoError(t, err)
	assert.Len(t, segs, 6)
}

func TestIngest_RejectsFeatureWithoutPathID(t *testing.T) {
	s := openTestStore(t)

	bad := `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "id": "x",
		 "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]},
		 "properties": {"sequence": 1}}]}`
	_, err := s.Ingest(context.Background(), []byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pathId")
}

func TestGet(t *testing.T) {
	s := ingestedStore(t)

	seg, err := s.Get(context.Background(), "seg4")
	require.NoError(t, err)
	assert.Equal(t, int64(10), seg.PathID)
	assert.Equal(t, float64(60), seg.Sequence)
	assert.Equal(t, int64(20), seg.NextPathID)
	assert.Equal(t, float64(500), seg.NextSequence)
	assert.Equal(t, "20", seg.DownstreamChain)
	assert.Equal(t, "Kaw", seg.Props["name"])
	assert.Len(t, seg.Geometry, 2)

	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestQuery_ConditionsOr(t *testing.T) {
	s := ingestedStore(t)

	segs, err := s.Query(context.Background(), provider.Query{
		Conditions: []provider.Condition{
			{Name: geo.FieldPathID, Value: int64(10)},
			{Name: geo.FieldPathID, Value: int64(20)},
		},
		Combine: provider.CombineOr,
	})
	require.NoError(t, err)
	assert.Len(t, segs, 6)
}

func TestQuery_SortDescendingWithIDTiebreak(t *testing.T) {
	s := ingestedStore(t)

	segs, err := s.Query(context.Background(), provider.Query{
		Conditions: []provider.Condition{{Name: geo.FieldPathID, Value: int64(10)}},
		Sort:       []provider.Sort{{Property: geo.FieldSequence, Descending: true}},
	})
	require.NoError(t, err)
	require.Len(t, segs, 4)
	assert.Equal(t, "seg1", segs[0].ID)
	assert.Equal(t, "seg2", segs[1].ID)
	assert.Equal(t, "seg3", segs[2].ID)
	assert.Equal(t, "seg4", segs[3].ID)
}

func TestQuery_BBoxOverlap(t *testing.T) {
	s := ingestedStore(t)

	segs, err := s.Query(context.Background(), provider.Query{
		BBox: &geo.BBox{MinLon: -94.61, MinLat: 39.04, MaxLon: -94.58, MaxLat: 39.07},
	})
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "seg2", segs[0].ID)
}

func TestQuery_BBoxMiss_ReturnsEmptyNotError(t *testing.T) {
	s := ingestedStore(t)

	segs, err := s.Query(context.Background(), provider.Query{
		BBox: &geo.BBox{MinLon: 10, MinLat: 10, MaxLon: 11, MaxLat: 11},
	})
	require.NoError(t, err)
	assert.NotNil(t, segs)
	assert.Empty(t, segs)
}

func TestQuery_PropAttributeCondition(t *testing.T) {
	s := ingestedStore(t)

	segs, err := s.Query(context.Background(), provider.Query{
		Conditions: []provider.Condition{{Name: "name", Value: "Missouri"}},
	})
	require.NoError(t, err)
	assert.Len(t, segs, 2)
}

func TestQuery_LimitAndOffset(t *testing.T) {
	s := ingestedStore(t)

	first, err := s.Query(context.Background(), provider.Query{
		Sort:  []provider.Sort{{Property: geo.FieldSequence, Descending: false}},
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	next, err := s.Query(context.Background(), provider.Query{
		Sort:   []provider.Sort{{Property: geo.FieldSequence, Descending: false}},
		Limit:  2,
		Offset: 2,
	})
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.NotEqual(t, first[0].ID, next[0].ID)
}

func TestQuery_RejectsHostileFieldName(t *testing.T) {
	s := ingestedStore(t)

	_, err := s.Query(context.Background(), provider.Query{
		Conditions: []provider.Condition{{Name: "x') OR 1=1 --", Value: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field name")
}

package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hydrologic/mainstem/internal/provider"
)

func TestParseDirection(t *testing.T) {
	assert.Equal(t, DirectionDownstream, ParseDirection("downstream"))
	assert.Equal(t, DirectionDownstream, ParseDirection("desc"))
	assert.Equal(t, DirectionUpstream, ParseDirection("upstream"))
	assert.Equal(t, DirectionUpstream, ParseDirection("asc"))
	assert.Equal(t, DirectionUnset, ParseDirection(""))
	assert.Equal(t, DirectionUnset, ParseDirection("sideways"))
}

func TestPlanOrder(t *testing.T) {
	tests := []struct {
		name     string
		dir      Direction
		property string
		grouping bool
		want     []provider.Sort
	}{
		{
			name: "unset leaves ordering to the provider",
			dir:  DirectionUnset,
			want: nil,
		},
		{
			name: "downstream is sequence descending",
			dir:  DirectionDownstream,
			want: []provider.Sort{{Property: "sequence", Descending: true}},
		},
		{
			name: "upstream is sequence ascending",
			dir:  DirectionUpstream,
			want: []provider.Sort{{Property: "sequence", Descending: false}},
		},
		{
			name:     "explicit property is honored",
			dir:      DirectionUpstream,
			property: "lengthKm",
			want:     []provider.Sort{{Property: "lengthKm", Descending: false}},
		},
		{
			name:     "grouping forces sequence descending",
			dir:      DirectionUpstream,
			property: "lengthKm",
			grouping: true,
			want:     []provider.Sort{{Property: "sequence", Descending: true}},
		},
		{
			name:     "grouping forces ordering even when unset",
			dir:      DirectionUnset,
			grouping: true,
			want:     []provider.Sort{{Property: "sequence", Descending: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanOrder(tt.dir, tt.property, tt.grouping)
			assert.Equal(t, tt.want, got)
		})
	}
}

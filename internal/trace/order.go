package trace

import "github.com/hydrologic/mainstem/internal/provider"

// Direction is the caller's sort intent along the flow path.
type Direction int

const (
	// DirectionUnset leaves ordering to the provider's default.
	DirectionUnset Direction = iota
	// DirectionDownstream orders from the seed toward the outlet
	// (descending sequence).
	DirectionDownstream
	// DirectionUpstream orders from the outlet toward the seed
	// (ascending sequence).
	DirectionUpstream
)

// ParseDirection maps the wire values to a Direction. Unknown or empty
// strings mean unset.
func ParseDirection(s string) Direction {
	switch s {
	case "downstream", "desc":
		return DirectionDownstream
	case "upstream", "asc":
		return DirectionUpstream
	}
	return DirectionUnset
}

// PlanOrder translates a sort intent into a provider ordering spec.
//
// Grouping requires the members of each path to arrive in one contiguous,
// unambiguous downstream run, so forceForGrouping overrides whatever the
// caller asked for with sequence-descending.
func PlanOrder(dir Direction, property string, forceForGrouping bool) []provider.Sort {
	if forceForGrouping {
		return []provider.Sort{{Property: "sequence", Descending: true}}
	}
	if property == "" {
		property = "sequence"
	}
	switch dir {
	case DirectionDownstream:
		return []provider.Sort{{Property: property, Descending: true}}
	case DirectionUpstream:
		return []provider.Sort{{Property: property, Descending: false}}
	}
	return nil
}

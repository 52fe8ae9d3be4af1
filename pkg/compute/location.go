package compute

import "strings"

// LocationScope is the level of a location in the provider hierarchy.
type LocationScope string

const (
	ScopeProvider LocationScope = "PROVIDER"
	ScopeRegion   LocationScope = "REGION"
	ScopeZone     LocationScope = "ZONE"
)

// Location is a node of the provider/region/zone tree.
// Only the parent is referenced; children are found by scanning.
type Location struct {
	ID           string            `json:"id"`
	Description  string            `json:"description,omitempty"`
	Scope        LocationScope     `json:"scope"`
	Parent       *Location         `json:"parent,omitempty"`
	ISO3166Codes []string          `json:"iso3166Codes,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Region walks up the tree and returns the closest region-scoped location,
// or nil when the location is not below a region.
func (l *Location) Region() *Location {
	for cur := l; cur != nil; cur = cur.Parent {
		if cur.Scope == ScopeRegion {
			return cur
		}
	}
	return nil
}

// Path renders the location as provider/region/zone.
func (l *Location) Path() string {
	var parts []string
	for cur := l; cur != nil; cur = cur.Parent {
		parts = append([]string{cur.ID}, parts...)
	}
	return strings.Join(parts, "/")
}

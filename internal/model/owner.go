// Package model defines the core domain models used throughout the application.
package model

// OwnerRecord is one normalized ownership entry. Only buyer-role rows survive
// normalization, so every OwnerRecord is eligible for matching.
type OwnerRecord struct {
	OwnerID       string
	Project       string
	ProjectClean  string
	Building      string
	BuildingClean string
	UnitNo        string
	OwnerName     string
	Role          string
	Area          float64
	SourceRow     int
}

// CompositeKey returns the exact-match key used by the deterministic tier.
func (o *OwnerRecord) CompositeKey() CompositeKey {
	return CompositeKey{Project: o.ProjectClean, Building: o.BuildingClean, Unit: o.UnitNo}
}

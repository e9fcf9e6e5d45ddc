// Package eligibility decides whether a voter's resolved location satisfies
// a poll's geographic scope. The check fails closed: whenever the voter side
// is missing a field the scope needs, the answer is false.
package eligibility

import (
	"github.com/civiclab/agora/internal/entity"
	"github.com/civiclab/agora/internal/geo"
)

// Eligible reports whether the voter may cast a ballot under the scope.
// Pure and total; it gates submission before any ballot validation runs.
func Eligible(scope entity.LocationScope, voter entity.VoterLocation) bool {
	switch scope.Kind {
	case entity.ScopeGlobal:
		return true
	case entity.ScopeCountry:
		return voter.CountryID != "" && voter.CountryID == scope.CountryID
	case entity.ScopeRegion:
		return voter.CountryID != "" && voter.CountryID == scope.CountryID &&
			voter.RegionID != "" && voter.RegionID == scope.RegionID
	case entity.ScopeCity:
		return voter.CountryID != "" && voter.CountryID == scope.CountryID &&
			voter.RegionID != "" && voter.RegionID == scope.RegionID &&
			voter.CityID != "" && voter.CityID == scope.CityID
	case entity.ScopeGeofenced:
		if voter.Coordinate == nil {
			return false
		}
		return geo.DistanceKm(*voter.Coordinate, scope.Center) <= scope.RadiusKm
	}
	return false
}

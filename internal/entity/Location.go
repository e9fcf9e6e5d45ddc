package entity

import "errors"

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ScopeKind string

const (
	ScopeGlobal    ScopeKind = "global"
	ScopeCountry   ScopeKind = "country"
	ScopeRegion    ScopeKind = "region"
	ScopeCity      ScopeKind = "city"
	ScopeGeofenced ScopeKind = "geofenced"
)

var ErrInvalidScope = errors.New("invalid location scope")

// LocationScope restricts who may vote on a poll. Exactly one kind is
// active; the id fields and geofence fields are meaningful only for the
// kinds that declare them.
type LocationScope struct {
	Kind      ScopeKind  `json:"kind"`
	CountryID string     `json:"country_id,omitempty"`
	RegionID  string     `json:"region_id,omitempty"`
	CityID    string     `json:"city_id,omitempty"`
	Center    Coordinate `json:"center,omitempty"`
	RadiusKm  float64    `json:"radius_km,omitempty"`
}

func (s LocationScope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		return nil
	case ScopeCountry:
		if s.CountryID == "" {
			return ErrInvalidScope
		}
	case ScopeRegion:
		if s.CountryID == "" || s.RegionID == "" {
			return ErrInvalidScope
		}
	case ScopeCity:
		if s.CountryID == "" || s.RegionID == "" || s.CityID == "" {
			return ErrInvalidScope
		}
	case ScopeGeofenced:
		if s.RadiusKm <= 0 {
			return ErrInvalidScope
		}
	default:
		return ErrInvalidScope
	}
	return nil
}

// VoterLocation is a voter's resolved position. Coordinate is nil when the
// voter supplied only administrative ids; the ids are empty when resolution
// failed or was never attempted.
type VoterLocation struct {
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	CountryID  string      `json:"country_id,omitempty"`
	RegionID   string      `json:"region_id,omitempty"`
	CityID     string      `json:"city_id,omitempty"`
}

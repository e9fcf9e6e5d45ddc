// Package location maps a coordinate or explicit administrative ids to a
// normalized VoterLocation. Coordinate-only inputs go through the external
// reverse geocoder; its answers are advisory-cached so repeated lookups in
// the same area stay local.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/civiclab/agora/internal/entity"
	"github.com/civiclab/agora/internal/geocode"
	"github.com/civiclab/agora/internal/slug"
)

var ErrGeocodingUnavailable = errors.New("geocoding unavailable")

// Geocoder is the external reverse-geocoding collaborator.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error)
}

// Input is either a coordinate, explicit administrative ids, or both.
type Input struct {
	Coordinate *entity.Coordinate
	CountryID  string
	RegionID   string
	CityID     string
}

type Resolver struct {
	geocoder Geocoder
	cache    *gocache.Cache
	zoom     int
	log      *slog.Logger
}

func NewResolver(geocoder Geocoder, zoom int, cacheTTL time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
		zoom:     zoom,
		log:      log,
	}
}

// Resolve normalizes the input into a VoterLocation.
//
// Explicit administrative ids pass through unchanged. A coordinate with no
// ids is reverse-geocoded and the returned names are slugged into ids. When
// the geocoder fails, the coordinate is kept but the ids stay absent and the
// error wraps ErrGeocodingUnavailable; callers must treat that location as
// insufficient for administrative scope checks.
func (r *Resolver) Resolve(ctx context.Context, in Input) (entity.VoterLocation, error) {
	const op = "location.Resolve"

	if in.CountryID != "" || in.RegionID != "" || in.CityID != "" {
		return entity.VoterLocation{
			Coordinate: in.Coordinate,
			CountryID:  in.CountryID,
			RegionID:   in.RegionID,
			CityID:     in.CityID,
		}, nil
	}

	if in.Coordinate == nil {
		return entity.VoterLocation{}, nil
	}

	key := r.cacheKey(in.Coordinate.Latitude, in.Coordinate.Longitude)
	if cached, ok := r.cache.Get(key); ok {
		loc := cached.(entity.VoterLocation)
		loc.Coordinate = in.Coordinate
		return loc, nil
	}

	addr, err := r.geocoder.Reverse(ctx, in.Coordinate.Latitude, in.Coordinate.Longitude)
	if err != nil {
		r.log.Warn("reverse geocoding failed", slog.String("error", err.Error()))
		return entity.VoterLocation{Coordinate: in.Coordinate},
			fmt.Errorf("%s: %w: %w", op, ErrGeocodingUnavailable, err)
	}

	loc := entity.VoterLocation{
		Coordinate: in.Coordinate,
		CountryID:  countryID(addr),
		RegionID:   slug.Make(addr.Region),
		CityID:     slug.Make(addr.City),
	}

	r.cache.SetDefault(key, entity.VoterLocation{
		CountryID: loc.CountryID,
		RegionID:  loc.RegionID,
		CityID:    loc.CityID,
	})

	return loc, nil
}

// countryID prefers the ISO country code over the slugged English name, so
// "Greece" and "Ελλάδα" meet at "gr".
func countryID(addr geocode.Address) string {
	if addr.CountryCode != "" {
		return slug.Make(addr.CountryCode)
	}
	return slug.Make(addr.Country)
}

// cacheKey rounds the coordinate to the precision the configured zoom level
// can distinguish, so nearby lookups share an entry.
func (r *Resolver) cacheKey(lat, lon float64) string {
	decimals := 2
	switch {
	case r.zoom >= 14:
		decimals = 4
	case r.zoom >= 10:
		decimals = 3
	}
	return fmt.Sprintf("%.*f,%.*f", decimals, lat, decimals, lon)
}

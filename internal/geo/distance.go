// Package geo provides great-circle distance math for geofence checks.
package geo

import (
	"errors"
	"math"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

// ErrInvalidCoordinate is returned for latitudes outside [-90,90] or
// longitudes outside [-180,180].
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const earthRadiusKm = 6371.0

// Validate checks that p is a well-formed WGS84 coordinate pair.
func Validate(p model.LatLng) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return ErrInvalidCoordinate
	}
	if p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidCoordinate
	}
	if p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

// DistanceKm returns the haversine great-circle distance between a and b in
// kilometers. Symmetric, non-negative, and zero for identical points.
func DistanceKm(a, b model.LatLng) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c, nil
}

// DistanceMeters returns the haversine distance between a and b in meters.
func DistanceMeters(a, b model.LatLng) (float64, error) {
	km, err := DistanceKm(a, b)
	if err != nil {
		return 0, err
	}
	return km * 1000, nil
}

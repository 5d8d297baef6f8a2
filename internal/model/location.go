package model

import "time"

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// GeofenceSample is one device location reading. Samples are ephemeral:
// they gate eligibility and the countdown, and are never persisted.
type GeofenceSample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// LatLng returns the sample's coordinate pair.
func (s GeofenceSample) LatLng() LatLng {
	return LatLng{Lat: s.Lat, Lng: s.Lng}
}

// Fresh reports whether the sample is recent enough to trust at time now.
func (s GeofenceSample) Fresh(now time.Time, maxAge time.Duration) bool {
	if s.Timestamp.IsZero() {
		return false
	}
	return now.Sub(s.Timestamp) <= maxAge
}

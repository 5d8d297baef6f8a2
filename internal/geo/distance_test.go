package geo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

func TestDistanceKnownPoints(t *testing.T) {
	paris := model.LatLng{Lat: 48.8566, Lng: 2.3522}
	london := model.LatLng{Lat: 51.5074, Lng: -0.1278}

	km, err := DistanceKm(paris, london)
	require.NoError(t, err)
	require.InDelta(t, 343.556, km, 0.5)

	m, err := DistanceMeters(paris, london)
	require.NoError(t, err)
	require.InDelta(t, km*1000, m, 0.001)
}

func TestDistanceSymmetric(t *testing.T) {
	a := model.LatLng{Lat: 6.5244, Lng: 3.3792}
	b := model.LatLng{Lat: -33.8688, Lng: 151.2093}

	ab, err := DistanceKm(a, b)
	require.NoError(t, err)
	ba, err := DistanceKm(b, a)
	require.NoError(t, err)

	require.Equal(t, ab, ba)
	require.Greater(t, ab, 0.0)
}

func TestDistanceZeroForSamePoint(t *testing.T) {
	p := model.LatLng{Lat: 6.5244, Lng: 3.3792}
	km, err := DistanceKm(p, p)
	require.NoError(t, err)
	require.InDelta(t, 0, km, 1e-9)
}

func TestDistanceSmallOffsets(t *testing.T) {
	a := model.LatLng{Lat: 6.5244, Lng: 3.3792}
	b := model.LatLng{Lat: 6.5253, Lng: 3.3792}

	m, err := DistanceMeters(a, b)
	require.NoError(t, err)
	require.InDelta(t, 100.08, m, 0.5)
}

func TestValidateRejectsMalformedCoordinates(t *testing.T) {
	cases := []struct {
		name string
		p    model.LatLng
	}{
		{"lat too high", model.LatLng{Lat: 90.1, Lng: 0}},
		{"lat too low", model.LatLng{Lat: -91, Lng: 0}},
		{"lng too high", model.LatLng{Lat: 0, Lng: 180.5}},
		{"lng too low", model.LatLng{Lat: 0, Lng: -181}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, Validate(tc.p), ErrInvalidCoordinate)

			_, err := DistanceKm(tc.p, model.LatLng{})
			require.ErrorIs(t, err, ErrInvalidCoordinate)
			_, err = DistanceKm(model.LatLng{}, tc.p)
			require.ErrorIs(t, err, ErrInvalidCoordinate)
		})
	}
}

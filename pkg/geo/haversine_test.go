package geo

import (
	"math"
	"testing"

	"github.com/Shahir-47/sarva-backend/pkg/types"
)

func TestDistanceMetersKnownPairs(t *testing.T) {
	cases := []struct {
		name        string
		origin      types.Coordinates
		destination types.Coordinates
		wantMeters  float64
		tolerance   float64
	}{
		{
			name:        "same point",
			origin:      types.Coordinates{Lat: 40.7128, Lon: -74.0060},
			destination: types.Coordinates{Lat: 40.7128, Lon: -74.0060},
			wantMeters:  0,
			tolerance:   0.001,
		},
		{
			name:        "manhattan to brooklyn",
			origin:      types.Coordinates{Lat: 40.7128, Lon: -74.0060},
			destination: types.Coordinates{Lat: 40.6782, Lon: -73.9442},
			wantMeters:  6442,
			tolerance:   50,
		},
		{
			name:        "london to paris",
			origin:      types.Coordinates{Lat: 51.5074, Lon: -0.1278},
			destination: types.Coordinates{Lat: 48.8566, Lon: 2.3522},
			wantMeters:  343500,
			tolerance:   1000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceMeters(tc.origin, tc.destination)
			if math.Abs(got-tc.wantMeters) > tc.tolerance {
				t.Fatalf("distance %f, want %f within %f", got, tc.wantMeters, tc.tolerance)
			}
		})
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	a := types.Coordinates{Lat: 34.0522, Lon: -118.2437}
	b := types.Coordinates{Lat: 36.1699, Lon: -115.1398}

	forward := DistanceMeters(a, b)
	backward := DistanceMeters(b, a)
	if math.Abs(forward-backward) > 0.0001 {
		t.Fatalf("expected symmetric distance, got %f vs %f", forward, backward)
	}
}

func TestCacheKey(t *testing.T) {
	c := types.Coordinates{Lat: 40.7128, Lon: -74.006}
	if got := CacheKey(c); got != "40.712800,-74.006000" {
		t.Fatalf("unexpected cache key %s", got)
	}
}

package geo

import (
	"fmt"
	"math"

	"github.com/Shahir-47/sarva-backend/pkg/types"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two coordinates
// using the haversine formula. It is the fallback when the routing provider
// is unavailable, so it intentionally ignores road networks.
func DistanceMeters(origin, destination types.Coordinates) float64 {
	lat1 := radians(origin.Lat)
	lat2 := radians(destination.Lat)
	dLat := radians(destination.Lat - origin.Lat)
	dLon := radians(destination.Lon - origin.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// CacheKey renders a coordinate as a cache key component. Six decimal places
// is roughly 10cm of precision, enough that the same pickup/dropoff pair maps
// to the same key across requests.
func CacheKey(c types.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

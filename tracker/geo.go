// Package tracker turns vehicle positions into destinations, routes and
// arrival estimates, and reports crew positions back to the gateway.
package tracker

import (
	"math"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// EarthRadius is the mean earth radius in meters
const EarthRadius = 6371000.0

// Haversine returns the great-circle distance between a and b in meters
func Haversine(a, b models.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Encode writes c in the "lat,lng" form used by older clients
func Encode(c models.Coordinate) string {
	return c.String()
}

// Decode parses the "lat,lng" form
func Decode(s string) (models.Coordinate, error) {
	return models.ParseCoordinate(s)
}

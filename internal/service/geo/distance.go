// internal/service/geo/distance.go

package geo

import (
	"fmt"
	"math"

	"tadamon/internal/domain/geo"
)

const earthRadiusKm = 6371.0

// DistanceKm calculates the great-circle distance between two points in kilometers
func DistanceKm(a, b geo.GeoPoint) float64 {
	// Convert latitude and longitude from degrees to radians
	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	// Haversine formula
	dLat := lat2 - lat1
	dLon := lon2 - lon1

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1)*math.Cos(lat2)*vSin
	// Rounding can push h slightly past 1 for antipodal points
	h = math.Min(1, h)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// FormatDistance renders meters below one kilometer and tenths of a kilometer above
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm", km)
}

// IsWithinRadius checks if a point lies inside the circle around center
func IsWithinRadius(point, center geo.GeoPoint, radiusKm float64) bool {
	return DistanceKm(point, center) <= radiusKm
}

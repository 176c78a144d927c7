// README: Pure geographic helpers: haversine distance and radius checks.
package matching

import (
	"math"

	"kirana/internal/types"
)

const (
	earthRadiusKm = 6371.0
	// DeliveryRadiusKm is the system-wide driver matching radius.
	DeliveryRadiusKm = 3.0
)

// Distance returns the great-circle distance in kilometres between a and b.
func Distance(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// IsWithinRadius is inclusive: a point exactly radiusKm away is inside.
func IsWithinRadius(a, b types.Point, radiusKm float64) bool {
	return Distance(a, b) <= radiusKm
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// sortByDistance is an insertion sort; equal distances keep their input order.
func sortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}

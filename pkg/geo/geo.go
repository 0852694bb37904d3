// Package geo holds the spherical-distance math and coordinate validation
// used by the nearby query path. Index scans are delegated to the storage
// engine's 2dsphere index; this package only shapes and checks inputs and
// computes great-circle distances for ordering and boundary checks.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64
	Lon float64
}

// Validate checks WGS84 bounds: lat in [-90, 90], lon in [-180, 180].
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %v", p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %v", p.Lon)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in kilometers
// using the haversine formula. Correct near the poles and across the
// antimeridian, unlike a flat-plane approximation.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// KmToMeters converts a radius in kilometers to the meters expected by the
// storage engine's spherical queries.
func KmToMeters(km float64) float64 {
	return km * 1000
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

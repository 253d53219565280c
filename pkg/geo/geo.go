// Package geo provides the geographic primitives for trip planning.
//
// All distance calculations use the Haversine formula on WGS-84
// coordinates and are expressed in statute miles. Coordinate equality
// is tolerant: two points within 1e-6 degrees on both axes (roughly
// 0.11 m) are the same node.
package geo

import "math"

// EarthRadiusMiles is the mean radius of Earth in statute miles.
const EarthRadiusMiles = 3959.0

// coordPrecision is the rounding applied for equality and map keys.
const coordPrecision = 1e6

// Coordinate represents a WGS-84 geographic point with an optional
// display label (hub or venue name).
type Coordinate struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

// Key is a Coordinate reduced to its rounded lat/lng, usable as a map
// key. The label is deliberately excluded.
type Key struct {
	Lat float64
	Lng float64
}

// Key returns the tolerant map key for the coordinate.
func (c Coordinate) Key() Key {
	return Key{
		Lat: math.Round(c.Lat*coordPrecision) / coordPrecision,
		Lng: math.Round(c.Lng*coordPrecision) / coordPrecision,
	}
}

// Equal reports whether two coordinates are the same node under the
// 1e-6 rounding rule. Labels are ignored.
func (c Coordinate) Equal(other Coordinate) bool {
	return c.Key() == other.Key()
}

// HaversineMiles returns the great-circle distance between two points
// in statute miles.
func HaversineMiles(a, b Coordinate) float64 {
	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

// Package solver implements the weekly trip-planning core: distance
// matrix assembly, venue clustering, constraint derivation, greedy
// assignment, stop re-ordering, the infeasibility cascade, preseason
// multi-pass planning, post-game disposition, and scoring.
package solver

import (
	"math"

	"github.com/dragonseats/optimizer/pkg/geo"
)

// roadFactor converts straight-line miles to an estimated road miles.
const roadFactor = 1.3

// fallbackSpeedMPH is the assumed average speed for estimated legs.
const fallbackSpeedMPH = 50.0

// Entry is one (origin, destination) cell of the distance matrix.
type Entry struct {
	Miles   float64
	Minutes float64
}

// Matrix holds pairwise driving distance and duration for a fixed set
// of locations. Lookups never fail: missing cells fall back to a
// haversine estimate so a provider outage cannot abort planning.
type Matrix struct {
	locations []geo.Coordinate
	entries   map[[2]int]Entry
}

// NewMatrix creates a matrix over the given location set with the
// diagonal pre-filled at (0, 0).
func NewMatrix(locations []geo.Coordinate) *Matrix {
	m := &Matrix{
		locations: locations,
		entries:   make(map[[2]int]Entry, len(locations)*len(locations)),
	}
	for i := range locations {
		m.entries[[2]int{i, i}] = Entry{}
	}
	return m
}

// Locations returns the matrix's location set in index order.
func (m *Matrix) Locations() []geo.Coordinate {
	return m.locations
}

// Size returns the number of locations.
func (m *Matrix) Size() int {
	return len(m.locations)
}

// Set stores the entry for (i, j).
func (m *Matrix) Set(i, j int, e Entry) {
	m.entries[[2]int{i, j}] = e
}

// Has reports whether (i, j) is populated.
func (m *Matrix) Has(i, j int) bool {
	_, ok := m.entries[[2]int{i, j}]
	return ok
}

// Get returns the entry for (i, j), estimating via haversine when the
// cell was never populated.
func (m *Matrix) Get(i, j int) Entry {
	if e, ok := m.entries[[2]int{i, j}]; ok {
		return e
	}
	if i < 0 || j < 0 || i >= len(m.locations) || j >= len(m.locations) {
		return Entry{}
	}
	return HaversineEstimate(m.locations[i], m.locations[j])
}

// MilesBetween returns driving miles for (i, j).
func (m *Matrix) MilesBetween(i, j int) float64 {
	return m.Get(i, j).Miles
}

// MinutesBetween returns driving minutes for (i, j).
func (m *Matrix) MinutesBetween(i, j int) float64 {
	return m.Get(i, j).Minutes
}

// LocationIndex finds the matrix index of a coordinate by tolerant
// equality. Returns -1 when the coordinate is not in the set.
func (m *Matrix) LocationIndex(c geo.Coordinate) int {
	for i, loc := range m.locations {
		if loc.Equal(c) {
			return i
		}
	}
	return -1
}

// HaversineEstimate approximates a driving leg from the great-circle
// distance: straight-line miles scaled by a road factor, duration at
// an assumed average speed. Both values are rounded to one decimal.
func HaversineEstimate(a, b geo.Coordinate) Entry {
	roadMiles := geo.HaversineMiles(a, b) * roadFactor
	return Entry{
		Miles:   round1(roadMiles),
		Minutes: round1(roadMiles / fallbackSpeedMPH * 60),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

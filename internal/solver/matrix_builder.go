package solver

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/dragonseats/optimizer/pkg/geo"
	"github.com/dragonseats/optimizer/pkg/maps"
)

// CachedDistance is one persisted distance-cache row.
type CachedDistance struct {
	OriginLat       float64
	OriginLng       float64
	DestLat         float64
	DestLng         float64
	DistanceMiles   float64
	DurationMinutes float64
}

// DistanceCache is the persistent cross-run layer of the matrix.
type DistanceCache interface {
	Entries(ctx context.Context) ([]CachedDistance, error)
	Store(ctx context.Context, entries []CachedDistance) error
}

// DistanceProvider fetches driving distances from the external
// distance service.
type DistanceProvider interface {
	Enabled() bool
	FetchMatrix(ctx context.Context, origins, destinations []geo.Coordinate) ([]maps.PairDistance, error)
}

// MatrixBuilder assembles the distance matrix for a location set.
// Priority per cell: cache hit, then provider fetch, then haversine
// estimate. Newly fetched entries are written back to the cache
// asynchronously; cache and provider failures are never fatal.
type MatrixBuilder struct {
	cache     DistanceCache
	provider  DistanceProvider
	tolerance float64
}

// NewMatrixBuilder wires the builder. tolerance is the per-axis
// coordinate slack used when matching cache rows to locations.
func NewMatrixBuilder(cache DistanceCache, provider DistanceProvider, tolerance float64) *MatrixBuilder {
	if tolerance <= 0 {
		tolerance = 0.001
	}
	return &MatrixBuilder{cache: cache, provider: provider, tolerance: tolerance}
}

// Build produces the full matrix for the given locations.
func (b *MatrixBuilder) Build(ctx context.Context, locations []geo.Coordinate) *Matrix {
	m := NewMatrix(locations)
	if len(locations) < 2 {
		return m
	}

	b.fillFromCache(ctx, m)

	missing := missingPairs(m)
	if len(missing) > 0 && b.provider != nil && b.provider.Enabled() {
		b.fillFromProvider(ctx, m, missing)
	}

	// Whatever is still missing resolves lazily via Get's haversine
	// fallback, but fill it eagerly so Has is accurate for callers.
	for _, p := range missingPairs(m) {
		m.Set(p[0], p[1], HaversineEstimate(locations[p[0]], locations[p[1]]))
	}

	return m
}

func (b *MatrixBuilder) fillFromCache(ctx context.Context, m *Matrix) {
	if b.cache == nil {
		return
	}
	rows, err := b.cache.Entries(ctx)
	if err != nil {
		log.Printf("[matrix] cache read failed, continuing without: %v", err)
		return
	}

	hits := 0
	locs := m.Locations()
	for _, row := range rows {
		oi := b.matchIndex(locs, row.OriginLat, row.OriginLng)
		if oi < 0 {
			continue
		}
		di := b.matchIndex(locs, row.DestLat, row.DestLng)
		if di < 0 || oi == di {
			continue
		}
		m.Set(oi, di, Entry{Miles: row.DistanceMiles, Minutes: row.DurationMinutes})
		hits++
	}
	if hits > 0 {
		log.Printf("[matrix] %d cells filled from cache", hits)
	}
}

func (b *MatrixBuilder) matchIndex(locs []geo.Coordinate, lat, lng float64) int {
	for i, loc := range locs {
		if math.Abs(loc.Lat-lat) <= b.tolerance && math.Abs(loc.Lng-lng) <= b.tolerance {
			return i
		}
	}
	return -1
}

func (b *MatrixBuilder) fillFromProvider(ctx context.Context, m *Matrix, missing [][2]int) {
	locs := m.Locations()

	// Collapse the missing pairs to unique origin and destination
	// index sets; the provider is queried as a cross product.
	originSet := make(map[int]bool)
	destSet := make(map[int]bool)
	for _, p := range missing {
		originSet[p[0]] = true
		destSet[p[1]] = true
	}

	var origins, dests []geo.Coordinate
	var originIdx, destIdx []int
	for i := range locs {
		if originSet[i] {
			origins = append(origins, locs[i])
			originIdx = append(originIdx, i)
		}
		if destSet[i] {
			dests = append(dests, locs[i])
			destIdx = append(destIdx, i)
		}
	}

	results, err := b.provider.FetchMatrix(ctx, origins, dests)
	if err != nil {
		log.Printf("[matrix] provider fetch failed, using estimates: %v", err)
	}
	if len(results) == 0 {
		return
	}

	var fresh []CachedDistance
	filled := 0
	for _, r := range results {
		oi := m.LocationIndex(r.Origin)
		di := m.LocationIndex(r.Destination)
		if oi < 0 || di < 0 || oi == di || m.Has(oi, di) {
			continue
		}
		m.Set(oi, di, Entry{Miles: r.DistanceMiles, Minutes: r.DurationMinutes})
		filled++
		fresh = append(fresh, CachedDistance{
			OriginLat:       r.Origin.Lat,
			OriginLng:       r.Origin.Lng,
			DestLat:         r.Destination.Lat,
			DestLng:         r.Destination.Lng,
			DistanceMiles:   r.DistanceMiles,
			DurationMinutes: r.DurationMinutes,
		})
	}
	log.Printf("[matrix] %d cells filled from provider (%d origins x %d dests)",
		filled, len(originIdx), len(destIdx))

	if len(fresh) > 0 && b.cache != nil {
		// Write-back is best effort and must not delay the request.
		go func(entries []CachedDistance) {
			writeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := b.cache.Store(writeCtx, entries); err != nil {
				log.Printf("[matrix] cache write-back failed: %v", err)
			}
		}(fresh)
	}
}

func missingPairs(m *Matrix) [][2]int {
	var missing [][2]int
	n := m.Size()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || m.Has(i, j) {
				continue
			}
			missing = append(missing, [2]int{i, j})
		}
	}
	return missing
}

package solver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonseats/optimizer/pkg/geo"
	"github.com/dragonseats/optimizer/pkg/maps"
)

func testLocations() []geo.Coordinate {
	return []geo.Coordinate{
		{Lat: 41.4993, Lng: -81.6944, Label: "Cleveland Hub"},
		{Lat: 41.0753, Lng: -81.5097, Label: "Akron Field"},
		{Lat: 40.7989, Lng: -81.3784, Label: "Canton Bowl"},
	}
}

func TestMatrix_DiagonalIsZero(t *testing.T) {
	m := NewMatrix(testLocations())
	for i := 0; i < m.Size(); i++ {
		e := m.Get(i, i)
		assert.Zero(t, e.Miles)
		assert.Zero(t, e.Minutes)
	}
}

func TestMatrix_FallbackIsAlwaysPositive(t *testing.T) {
	// No cache, no provider: every off-diagonal cell must still come
	// back with positive miles and minutes.
	m := NewMatrixBuilder(nil, nil, 0.001).Build(context.Background(), testLocations())

	for i := 0; i < m.Size(); i++ {
		for j := 0; j < m.Size(); j++ {
			if i == j {
				continue
			}
			e := m.Get(i, j)
			assert.Greater(t, e.Miles, 0.0, "miles (%d,%d)", i, j)
			assert.Greater(t, e.Minutes, 0.0, "minutes (%d,%d)", i, j)
		}
	}
}

func TestMatrix_LocationIndexTolerantEquality(t *testing.T) {
	locs := testLocations()
	m := NewMatrix(locs)

	nudged := geo.Coordinate{Lat: locs[1].Lat + 4e-7, Lng: locs[1].Lng - 4e-7}
	assert.Equal(t, 1, m.LocationIndex(nudged))

	far := geo.Coordinate{Lat: 39.0, Lng: -84.0}
	assert.Equal(t, -1, m.LocationIndex(far))
}

func TestHaversineEstimate_RoadFactorAndSpeed(t *testing.T) {
	a := geo.Coordinate{Lat: 41.4993, Lng: -81.6944}
	b := geo.Coordinate{Lat: 41.0753, Lng: -81.5097}

	e := HaversineEstimate(a, b)
	straight := geo.HaversineMiles(a, b)

	assert.InDelta(t, straight*1.3, e.Miles, 0.06)
	assert.InDelta(t, e.Miles/50*60, e.Minutes, 0.15)
}

// fakeCache is an in-memory DistanceCache.
type fakeCache struct {
	mu      sync.Mutex
	rows    []CachedDistance
	stored  []CachedDistance
	readErr error
}

func (f *fakeCache) Entries(context.Context) ([]CachedDistance, error) {
	return f.rows, f.readErr
}

func (f *fakeCache) Store(_ context.Context, entries []CachedDistance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, entries...)
	return nil
}

// fakeProvider returns canned pair distances.
type fakeProvider struct {
	enabled bool
	pairs   []maps.PairDistance
	calls   int
}

func (f *fakeProvider) Enabled() bool { return f.enabled }

func (f *fakeProvider) FetchMatrix(context.Context, []geo.Coordinate, []geo.Coordinate) ([]maps.PairDistance, error) {
	f.calls++
	return f.pairs, nil
}

func TestMatrixBuilder_CacheHitFillsCell(t *testing.T) {
	locs := testLocations()
	cache := &fakeCache{rows: []CachedDistance{{
		OriginLat: locs[0].Lat + 0.0004, OriginLng: locs[0].Lng,
		DestLat: locs[1].Lat, DestLng: locs[1].Lng - 0.0004,
		DistanceMiles: 38.5, DurationMinutes: 44.0,
	}}}

	m := NewMatrixBuilder(cache, nil, 0.001).Build(context.Background(), locs)

	e := m.Get(0, 1)
	assert.Equal(t, 38.5, e.Miles, "row within tolerance should win over the estimate")
	assert.Equal(t, 44.0, e.Minutes)
}

func TestMatrixBuilder_ProviderFillsMissing(t *testing.T) {
	locs := testLocations()
	cache := &fakeCache{}
	provider := &fakeProvider{
		enabled: true,
		pairs: []maps.PairDistance{{
			Origin: locs[0], Destination: locs[2],
			DistanceMiles: 61.2, DurationMinutes: 65.0,
		}},
	}

	m := NewMatrixBuilder(cache, provider, 0.001).Build(context.Background(), locs)

	require.Equal(t, 1, provider.calls)
	assert.Equal(t, 61.2, m.Get(0, 2).Miles)

	// Cells the provider did not answer must fall back, not fail.
	assert.Greater(t, m.Get(2, 0).Miles, 0.0)
}

func TestMatrixBuilder_CacheFailureIsNonFatal(t *testing.T) {
	locs := testLocations()
	cache := &fakeCache{readErr: assert.AnError}

	m := NewMatrixBuilder(cache, nil, 0.001).Build(context.Background(), locs)

	assert.Greater(t, m.Get(0, 1).Miles, 0.0)
}

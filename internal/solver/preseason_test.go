package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonseats/optimizer/internal/model"
)

// preseasonWeek builds a week-0 deployment: two venues near one hub,
// one vehicle, and more demand than one trip's clustering can serve
// in a single pass when max stops is constrained.
func preseasonWeek() *model.WeekData {
	hub := testHub("hub-cle", "Cleveland Hub", clevelandHubLat, clevelandHubLng)
	v1 := testVenue("venue-1", "Lakefront Stadium", "cust-1", 41.5061, -81.6995)
	v2 := testVenue("venue-2", "Akron Field", "cust-2", 41.0753, -81.5097)

	data := &model.WeekData{
		SeasonYear: 2026,
		WeekNumber: 0,
		Hubs:       []model.Hub{hub},
		Venues:     map[string]*model.Venue{v1.ID: v1, v2.ID: v2},
		Games: []model.Game{
			testGame("game-1", "cust-1", v1.ID, 0),
			testGame("game-2", "cust-2", v2.ID, 0),
		},
		ContractItems: []model.ContractItem{
			testContractItem("cust-1", "heated_bench", 4),
			testContractItem("cust-2", "heated_bench", 4),
		},
		Vehicles:  []model.Vehicle{testVehicle("veh-1", "Truck 1", hub.ID, nil)},
		Personnel: testCrew(hub.ID),
	}
	data.Assets = testAssetsAtHub(hub.ID, "heated_bench", 8, "bench-")
	return data
}

func TestOptimizeWeek0_DeploysEverything(t *testing.T) {
	data := preseasonWeek()
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)

	result := NewPlanner(0).OptimizeWeek0(data, m, cons, 150, 4)

	assert.Equal(t, model.RunCompleted, result.Status)
	require.NotEmpty(t, result.Trips)

	total := 0
	for _, trip := range result.Trips {
		total += len(trip.AssetIDs)
	}
	assert.Equal(t, 8, total)
}

func TestOptimizeWeek0_AssetsNeverRepeatAcrossPasses(t *testing.T) {
	data := preseasonWeek()
	// Single-stop clustering forces at least two passes over the same
	// vehicle.
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)

	result := NewPlanner(0).OptimizeWeek0(data, m, cons, 150, 1)

	assetSeen := make(map[string]int)
	for _, trip := range result.Trips {
		for _, id := range trip.AssetIDs {
			assetSeen[id]++
		}
	}
	for id, n := range assetSeen {
		assert.Equal(t, 1, n, "asset %s shipped twice during preseason", id)
	}
}

func TestOptimizeWeek0_VehiclesMayRepeatAcrossPasses(t *testing.T) {
	data := preseasonWeek()
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)

	result := NewPlanner(0).OptimizeWeek0(data, m, cons, 150, 1)

	require.GreaterOrEqual(t, len(result.Trips), 2,
		"single-stop clustering with one vehicle needs multiple passes")
	for _, trip := range result.Trips {
		assert.Equal(t, "veh-1", trip.VehicleID)
	}
}

func TestOptimizeWeek0_EmitsPassWarnings(t *testing.T) {
	data := preseasonWeek()
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)

	result := NewPlanner(0).OptimizeWeek0(data, m, cons, 150, 4)

	found := false
	for _, w := range result.Warnings {
		if containsAll(w, "Pass 1:", "trips generated") {
			found = true
		}
	}
	assert.True(t, found, "per-pass warning expected, got %v", result.Warnings)
}

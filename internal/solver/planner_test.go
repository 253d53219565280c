package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonseats/optimizer/internal/model"
)

func TestOptimizeWeek_SingleStopHappyPath(t *testing.T) {
	data := singleStopWeek(5)

	result, _, _, _ := planWeek(data)

	require.Equal(t, model.RunCompleted, result.Status)
	require.Len(t, result.Trips, 1)
	trip := result.Trips[0]

	assert.Len(t, trip.AssetIDs, 16)
	assert.Equal(t, "veh-1", trip.VehicleID)
	assert.Equal(t, "hub-cle", trip.HubID)
	require.Len(t, trip.Stops, 1)
	assert.Equal(t, 1, trip.Stops[0].StopOrder)
	assert.Equal(t, model.ActionDeliver, trip.Stops[0].Action)
	assert.Empty(t, result.UnassignedDemands)
	assert.Greater(t, trip.TotalMiles, 0.0)
	assert.Greater(t, trip.TotalDriveHrs, 0.0)
	assert.Len(t, trip.PersonnelIDs, 2)
}

func TestOptimizeWeek_MultiStopCoversAllVenues(t *testing.T) {
	data := multiStopWeek()

	result, _, _, _ := planWeek(data)

	require.Equal(t, model.RunCompleted, result.Status)
	served := make(map[string]bool)
	for _, trip := range result.Trips {
		for _, stop := range trip.Stops {
			served[stop.VenueID] = true
		}
	}
	assert.Len(t, served, 3, "all three venues must be visited")
	assert.Empty(t, result.UnassignedDemands)
}

func TestOptimizeWeek_StopOrdersAreDense(t *testing.T) {
	data := multiStopWeek()

	result, _, _, _ := planWeek(data)

	for _, trip := range result.Trips {
		for i, stop := range trip.Stops {
			assert.Equal(t, i+1, stop.StopOrder)
		}
	}
}

func TestOptimizeWeek_CapacityOverflowWarnsButKeepsTrip(t *testing.T) {
	data := singleStopWeek(5)
	data.Vehicles[0].CapacityLbs = ptr(1000.0)

	result, _, _, _ := planWeek(data)

	require.Len(t, result.Trips, 1)
	found := false
	for _, w := range result.Warnings {
		if containsAll(w, "Truck 1", "may be overloaded") {
			found = true
		}
	}
	assert.True(t, found, "overload warning expected, got %v", result.Warnings)
}

func TestOptimizeWeek_NoVehicleEmitsUnassigned(t *testing.T) {
	data := singleStopWeek(5)
	data.Vehicles = nil

	result, _, _, _ := planWeek(data)

	assert.Equal(t, model.RunPartial, result.Status)
	assert.Empty(t, result.Trips)
	require.NotEmpty(t, result.UnassignedDemands)
	for _, u := range result.UnassignedDemands {
		assert.Equal(t, "No vehicle with sufficient capacity available", u.Reason)
	}
}

func TestOptimizeWeek_CrossHubFallbackWarns(t *testing.T) {
	data := singleStopWeek(5)
	// Move the only vehicle to a second, distant hub.
	remote := testHub("hub-cin", "Cincinnati Hub", 39.1031, -84.5120)
	data.Hubs = append(data.Hubs, remote)
	data.Vehicles[0].HomeHubID = remote.ID

	result, _, _, _ := planWeek(data)

	require.Len(t, result.Trips, 1)
	found := false
	for _, w := range result.Warnings {
		if containsAll(w, "Cross-hub", "Truck 1", "Cincinnati Hub") {
			found = true
		}
	}
	assert.True(t, found, "cross-hub warning expected, got %v", result.Warnings)
}

func TestOptimizeWeek_CrossHubReanchorsTrip(t *testing.T) {
	data := singleStopWeek(5)
	// The nearest hub is completely dry; truck, benches, and crew all
	// live at the second hub.
	remote := testHub("hub-cin", "Cincinnati Hub", 39.1031, -84.5120)
	data.Hubs = append(data.Hubs, remote)
	data.Vehicles[0].HomeHubID = remote.ID
	for i := range data.Assets {
		data.Assets[i].CurrentHubID = ptr(remote.ID)
	}
	data.Personnel = testCrew(remote.ID)

	result, _, _, _ := planWeek(data)

	require.Len(t, result.Trips, 1)
	trip := result.Trips[0]
	assert.Equal(t, "hub-cin", trip.HubID, "trip must anchor at the vehicle's hub")
	assert.Equal(t, "Cincinnati Hub", trip.HubName)
	assert.Len(t, trip.AssetIDs, 16)
	assert.Len(t, trip.PersonnelIDs, 2)
	assert.Empty(t, result.UnassignedDemands)
}

func TestOptimizeWeek_StopKeptWhenNothingAssignable(t *testing.T) {
	data := singleStopWeek(5)
	data.Assets = nil

	result, _, _, _ := planWeek(data)

	require.Len(t, result.Trips, 1)
	trip := result.Trips[0]
	assert.Empty(t, trip.AssetIDs)
	require.Len(t, trip.Stops, 1, "the stop survives even with nothing to deliver")
	assert.Equal(t, "cust-1", trip.Stops[0].CustomerID)
	assert.Len(t, result.UnassignedDemands, 2)
}

func TestOptimizeWeek_StopKeepsFirstCustomer(t *testing.T) {
	data := singleStopWeek(5)
	// A second customer shares the venue in the same week.
	data.Games = append(data.Games, testGame("game-2", "cust-2", "venue-1", 5))
	data.ContractItems = append(data.ContractItems, testContractItem("cust-2", "heated_bench", 2))
	data.Assets = append(data.Assets, testAssetsAtHub("hub-cle", "heated_bench", 2, "extra-")...)

	result, _, _, _ := planWeek(data)

	require.Len(t, result.Trips, 1)
	require.Len(t, result.Trips[0].Stops, 1)
	assert.Equal(t, "cust-1", result.Trips[0].Stops[0].CustomerID)
}

func TestOptimizeWeek_PartialShortfallReason(t *testing.T) {
	data := singleStopWeek(5)
	// Only 5 of the 8 contracted benches exist.
	var trimmed []model.Asset
	removed := 0
	for _, a := range data.Assets {
		if a.AssetType == "heated_bench" && removed < 3 {
			removed++
			continue
		}
		trimmed = append(trimmed, a)
	}
	data.Assets = trimmed

	result, _, _, _ := planWeek(data)

	assert.Equal(t, model.RunPartial, result.Status)
	require.Len(t, result.UnassignedDemands, 1)
	u := result.UnassignedDemands[0]
	assert.Equal(t, "heated_bench", u.AssetType)
	assert.Equal(t, 3, u.Quantity)
	assert.Equal(t, "Only 5 of 8 heated_bench available", u.Reason)
}

func TestOptimizeWeek_AssetAndVehicleUniqueness(t *testing.T) {
	data := multiStopWeek()
	// Second vehicle and extra demand spread so multiple trips can
	// appear.
	data.Vehicles = append(data.Vehicles, testVehicle("veh-2", "Truck 2", "hub-cle", nil))

	result, _, _, _ := planWeek(data)

	assetSeen := make(map[string]int)
	vehicleSeen := make(map[string]int)
	for _, trip := range result.Trips {
		vehicleSeen[trip.VehicleID]++
		for _, id := range trip.AssetIDs {
			assetSeen[id]++
		}
	}
	for id, n := range assetSeen {
		assert.Equal(t, 1, n, "asset %s appears on multiple trips", id)
	}
	for id, n := range vehicleSeen {
		assert.Equal(t, 1, n, "vehicle %s appears on multiple trips", id)
	}
}

func TestOptimizeWeek_NoDriverWarnsButKeepsTrip(t *testing.T) {
	data := singleStopWeek(5)
	data.Personnel = nil

	result, _, _, _ := planWeek(data)

	require.Len(t, result.Trips, 1)
	assert.Empty(t, result.Trips[0].PersonnelIDs)
	found := false
	for _, w := range result.Warnings {
		if containsAll(w, "No personnel available", "Cleveland Hub") {
			found = true
		}
	}
	assert.True(t, found, "missing-crew warning expected, got %v", result.Warnings)
}

func TestOptimizeWeek_Deterministic(t *testing.T) {
	data := multiStopWeek()
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)
	clusters := ClusterVenues(data, m, 150, 4)

	p := NewPlanner(0)
	first := p.OptimizeWeek(data, m, cons, clusters, nil)
	second := p.OptimizeWeek(data, m, cons, clusters, nil)

	require.Equal(t, len(first.Trips), len(second.Trips))
	for i := range first.Trips {
		assert.Equal(t, first.Trips[i].VehicleID, second.Trips[i].VehicleID)
		assert.Equal(t, first.Trips[i].AssetIDs, second.Trips[i].AssetIDs)
		assert.Equal(t, first.Trips[i].TotalMiles, second.Trips[i].TotalMiles)
	}
}

package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonseats/optimizer/internal/model"
)

// brandingConflictWeek sets up scenario: every bench at the hub has a
// pending rebrand task, so the initial run blocks them all.
func brandingConflictWeek() *model.WeekData {
	data := singleStopWeek(5)
	data.ContractItems = []model.ContractItem{
		testContractItem("cust-1", "heated_bench", 3),
	}
	data.Assets = testAssetsAtHub("hub-cle", "heated_bench", 3, "bench-")
	for _, a := range data.Assets {
		data.BrandingTasks = append(data.BrandingTasks, model.BrandingTask{
			ID: "bt-" + a.ID, AssetID: a.ID,
			ToBranding: ptr("Dragons"), Status: model.BrandingPending,
		})
	}
	return data
}

func TestCascade_BrandingConflictRecoveredAtStepTwo(t *testing.T) {
	data := brandingConflictWeek()
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)
	clusters := ClusterVenues(data, m, 150, 4)
	p := NewPlanner(0)

	initial := p.OptimizeWeek(data, m, cons, clusters, nil)
	require.NotEmpty(t, initial.UnassignedDemands, "blocked benches must leave the demand open")

	final := p.HandleInfeasibility(data, m, cons, clusters, initial)

	assert.Less(t, len(final.UnassignedDemands), len(initial.UnassignedDemands))
	assert.Empty(t, final.UnassignedDemands)

	foundStep2 := false
	for _, e := range final.ConstraintRelaxations {
		if e.Step == 2 {
			foundStep2 = true
			assert.Equal(t, "relaxed_branding", e.Action)
		}
	}
	assert.True(t, foundStep2, "step-2 relaxation entry expected, got %v", final.ConstraintRelaxations)

	rebrandWarning := false
	for _, w := range final.Warnings {
		if containsAll(w, "rebranding before deployment") {
			rebrandWarning = true
		}
	}
	assert.True(t, rebrandWarning, "rebranding warning expected, got %v", final.Warnings)
}

func TestCascade_BlockedAssetsNeverOnInitialTrips(t *testing.T) {
	data := brandingConflictWeek()
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)
	clusters := ClusterVenues(data, m, 150, 4)

	initial := NewPlanner(0).OptimizeWeek(data, m, cons, clusters, nil)

	for _, trip := range initial.Trips {
		for _, id := range trip.AssetIDs {
			assert.False(t, cons.BlockedAssetIDs[id], "blocked asset %s placed on a trip", id)
		}
	}
}

// infeasibleWeek is scenario: five venues spread across distant
// cities with a single vehicle.
func infeasibleWeek() *model.WeekData {
	hub := testHub("hub-cle", "Cleveland Hub", clevelandHubLat, clevelandHubLng)
	cities := []struct {
		id, name string
		lat, lng float64
	}{
		{"venue-cle", "Cleveland Field", 41.5061, -81.6995},
		{"venue-chi", "Chicago Yard", 41.8781, -87.6298},
		{"venue-nash", "Nashville Bowl", 36.1627, -86.7816},
		{"venue-dc", "Capital Stadium", 38.9072, -77.0369},
		{"venue-min", "Twin Cities Dome", 44.9778, -93.2650},
	}

	data := &model.WeekData{
		SeasonYear: 2026,
		WeekNumber: 7,
		Hubs:       []model.Hub{hub},
		Venues:     make(map[string]*model.Venue),
		Vehicles:   []model.Vehicle{testVehicle("veh-1", "Truck 1", hub.ID, nil)},
		Personnel:  testCrew(hub.ID),
	}
	for _, c := range cities {
		cust := "cust-" + c.id
		v := testVenue(c.id, c.name, cust, c.lat, c.lng)
		data.Venues[v.ID] = v
		data.Games = append(data.Games, testGame("game-"+c.id, cust, v.ID, 7))
		data.ContractItems = append(data.ContractItems, testContractItem(cust, "heated_bench", 2))
	}
	data.Assets = testAssetsAtHub(hub.ID, "heated_bench", 10, "bench-")
	return data
}

func TestCascade_InfeasibleWeekEndsPartial(t *testing.T) {
	data := infeasibleWeek()
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)
	clusters := ClusterVenues(data, m, 150, 4)
	p := NewPlanner(0)

	initial := p.OptimizeWeek(data, m, cons, clusters, nil)
	require.NotEmpty(t, initial.UnassignedDemands)
	require.NotEmpty(t, initial.Trips, "the single vehicle still covers one cluster")

	final := p.HandleInfeasibility(data, m, cons, clusters, initial)

	assert.Equal(t, model.RunPartial, final.Status)
	assert.NotEmpty(t, final.Trips)
	assert.NotEmpty(t, final.ConstraintRelaxations)
	assert.LessOrEqual(t, len(final.UnassignedDemands), len(initial.UnassignedDemands),
		"cascade must never make things worse")

	for _, u := range final.UnassignedDemands {
		assert.NotEmpty(t, u.Reason)
	}

	lastEntry := final.ConstraintRelaxations[len(final.ConstraintRelaxations)-1]
	assert.Equal(t, 6, lastEntry.Step)
	assert.Equal(t, "partial_solution", lastEntry.Action)
}

func TestCascade_NoOpWhenFeasible(t *testing.T) {
	data := singleStopWeek(5)
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)
	clusters := ClusterVenues(data, m, 150, 4)
	p := NewPlanner(0)

	initial := p.OptimizeWeek(data, m, cons, clusters, nil)
	require.Empty(t, initial.UnassignedDemands)

	final := p.HandleInfeasibility(data, m, cons, clusters, initial)
	assert.Same(t, initial, final)
}

func TestClassifyShortage(t *testing.T) {
	data := infeasibleWeek()

	assert.Equal(t, "Asset type/model not available in inventory",
		classifyShortage(data, "dragon_shader"))

	deployed := *data
	deployed.Assets = testAssetsAtHub("hub-cle", "heated_bench", 2, "bench-")
	for i := range deployed.Assets {
		deployed.Assets[i].Status = model.StatusOnSite
		deployed.Assets[i].CurrentHubID = nil
		deployed.Assets[i].CurrentVenueID = ptr("venue-cle")
	}
	assert.Contains(t, classifyShortage(&deployed, "heated_bench"), "none at hub")

	noVehicles := *data
	noVehicles.Vehicles = nil
	assert.Equal(t, "No vehicle with sufficient capacity available",
		classifyShortage(&noVehicles, "heated_bench"))

	noDrivers := *data
	noDrivers.Personnel = []model.Person{
		{ID: "p1", Role: model.RoleSales, HomeHubID: "hub-cle"},
	}
	assert.Equal(t, "No personnel available at nearest hub",
		classifyShortage(&noDrivers, "heated_bench"))

	assert.Equal(t, "Insufficient resources to cover all demands this week",
		classifyShortage(data, "heated_bench"))
}

package solver

import (
	"context"
	"strings"

	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// Cleveland-area coordinates used across the suite.
var (
	clevelandHubLat = 41.4993
	clevelandHubLng = -81.6944
)

func ptr[T any](v T) *T { return &v }

func testHub(id, name string, lat, lng float64) model.Hub {
	return model.Hub{ID: id, Name: name, City: name, State: "OH", Lat: lat, Lng: lng}
}

func testVenue(id, name, customerID string, lat, lng float64) *model.Venue {
	return &model.Venue{
		ID: id, Name: name, CustomerID: customerID,
		Lat: ptr(lat), Lng: ptr(lng), IsPrimary: true,
	}
}

func testGame(id, customerID, venueID string, week int) model.Game {
	g := model.Game{
		ID: id, CustomerID: customerID, CustomerName: "Customer " + customerID,
		VenueID: venueID, SeasonYear: 2026, WeekNumber: week,
		GameDate: "2026-09-13", SidelinesServed: 1, SeasonPhase: "regular",
	}
	if week == 0 {
		g.SeasonPhase = model.SeasonPhasePreseason
	} else {
		g.GameTime = ptr("13:00:00")
	}
	return g
}

func testContractItem(customerID, assetType string, qty int) model.ContractItem {
	return model.ContractItem{
		ID: customerID + "-" + assetType, ContractID: "contract-" + customerID,
		CustomerID: customerID, CustomerName: "Customer " + customerID,
		AssetType: assetType, Quantity: qty,
	}
}

func testAssetsAtHub(hubID, assetType string, count int, idPrefix string) []model.Asset {
	assets := make([]model.Asset, 0, count)
	for i := 0; i < count; i++ {
		assets = append(assets, model.Asset{
			ID:           idPrefix + string(rune('a'+i)),
			AssetType:    assetType,
			Condition:    model.ConditionInService,
			Status:       model.StatusAtHub,
			HomeHubID:    hubID,
			CurrentHubID: ptr(hubID),
			WeightLbs:    AssetWeightEstimate(assetType),
		})
	}
	return assets
}

func testVehicle(id, name, hubID string, capacity *float64) model.Vehicle {
	return model.Vehicle{ID: id, Name: name, HomeHubID: hubID, CapacityLbs: capacity, Status: "active"}
}

func testCrew(hubID string) []model.Person {
	return []model.Person{
		{ID: hubID + "-driver", Name: "Pat Driver", Role: model.RoleDriver, HomeHubID: hubID, MaxDriveHours: 11},
		{ID: hubID + "-tech", Name: "Sam Tech", Role: model.RoleServiceTech, HomeHubID: hubID, MaxDriveHours: 11},
	}
}

// singleStopWeek is scenario fixture: one Cleveland hub, one nearby
// venue, 16 assets at hub, one vehicle, a two-person crew, and a
// contract for all 16 assets.
func singleStopWeek(week int) *model.WeekData {
	hub := testHub("hub-cle", "Cleveland Hub", clevelandHubLat, clevelandHubLng)
	venue := testVenue("venue-1", "Lakefront Stadium", "cust-1", 41.5061, -81.6995)

	data := &model.WeekData{
		SeasonYear: 2026,
		WeekNumber: week,
		Hubs:       []model.Hub{hub},
		Venues:     map[string]*model.Venue{venue.ID: venue},
		Games:      []model.Game{testGame("game-1", "cust-1", venue.ID, week)},
		ContractItems: []model.ContractItem{
			testContractItem("cust-1", "heated_bench", 8),
			testContractItem("cust-1", "heated_foot_deck", 8),
		},
		Vehicles:  []model.Vehicle{testVehicle("veh-1", "Truck 1", hub.ID, nil)},
		Personnel: testCrew(hub.ID),
	}
	data.Assets = append(data.Assets, testAssetsAtHub(hub.ID, "heated_bench", 8, "bench-")...)
	data.Assets = append(data.Assets, testAssetsAtHub(hub.ID, "heated_foot_deck", 8, "deck-")...)
	return data
}

// multiStopWeek is scenario fixture: one hub and three Ohio venues
// within 150 miles, each with a two-bench demand.
func multiStopWeek() *model.WeekData {
	hub := testHub("hub-cle", "Cleveland Hub", clevelandHubLat, clevelandHubLng)
	v1 := testVenue("venue-akr", "Akron Field", "cust-1", 41.0753, -81.5097)
	v2 := testVenue("venue-can", "Canton Bowl", "cust-2", 40.7989, -81.3784)
	v3 := testVenue("venue-you", "Youngstown Yard", "cust-3", 41.0998, -80.6495)

	data := &model.WeekData{
		SeasonYear: 2026,
		WeekNumber: 5,
		Hubs:       []model.Hub{hub},
		Venues:     map[string]*model.Venue{v1.ID: v1, v2.ID: v2, v3.ID: v3},
		Games: []model.Game{
			testGame("game-1", "cust-1", v1.ID, 5),
			testGame("game-2", "cust-2", v2.ID, 5),
			testGame("game-3", "cust-3", v3.ID, 5),
		},
		ContractItems: []model.ContractItem{
			testContractItem("cust-1", "heated_bench", 2),
			testContractItem("cust-2", "heated_bench", 2),
			testContractItem("cust-3", "heated_bench", 2),
		},
		Vehicles:  []model.Vehicle{testVehicle("veh-1", "Truck 1", hub.ID, nil)},
		Personnel: testCrew(hub.ID),
	}
	data.Assets = append(data.Assets, testAssetsAtHub(hub.ID, "heated_bench", 8, "bench-")...)
	return data
}

func buildTestMatrix(data *model.WeekData) *Matrix {
	builder := NewMatrixBuilder(nil, nil, 0.001)
	return builder.Build(context.Background(), data.AllLocations())
}

func planWeek(data *model.WeekData) (*model.OptimizationResult, *Constraints, []VenueCluster, *Matrix) {
	m := buildTestMatrix(data)
	cons := BuildConstraints(data, 4)
	clusters := ClusterVenues(data, m, 150, 4)
	p := NewPlanner(0)
	return p.OptimizeWeek(data, m, cons, clusters, nil), cons, clusters, m
}

func venueLocation(v *model.Venue) geo.Coordinate {
	loc, _ := v.Location()
	return loc
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// reorderFixture builds a trip whose stops are deliberately sequenced
// worst-first: far, near, middle.
func reorderFixture() (*model.Trip, geo.Coordinate, *model.WeekData, *Matrix) {
	hub := testHub("hub-cle", "Cleveland Hub", clevelandHubLat, clevelandHubLng)
	near := testVenue("venue-near", "Lakefront Stadium", "c1", 41.5061, -81.6995)
	mid := testVenue("venue-mid", "Akron Field", "c2", 41.0753, -81.5097)
	far := testVenue("venue-far", "Canton Bowl", "c3", 40.7989, -81.3784)

	data := &model.WeekData{
		Hubs:   []model.Hub{hub},
		Venues: map[string]*model.Venue{near.ID: near, mid.ID: mid, far.ID: far},
	}

	locs := []geo.Coordinate{hub.Location(), venueLocation(near), venueLocation(mid), venueLocation(far)}
	m := NewMatrixBuilder(nil, nil, 0.001).Build(context.Background(), locs)

	trip := &model.Trip{
		HubID: hub.ID, HubName: hub.Name,
		Stops: []model.TripStop{
			{VenueID: far.ID, VenueName: far.Name, StopOrder: 1, Action: model.ActionDeliver},
			{VenueID: near.ID, VenueName: near.Name, StopOrder: 2, Action: model.ActionDeliver},
			{VenueID: mid.ID, VenueName: mid.Name, StopOrder: 3, Action: model.ActionDeliver},
		},
	}
	return trip, hub.Location(), data, m
}

func TestReorderStops_ImprovesSequence(t *testing.T) {
	trip, hubLoc, data, m := reorderFixture()

	reorderStops(trip, hubLoc, data, m, time.Second)

	require.Len(t, trip.Stops, 3, "reorder must never drop a stop")
	// Nearest first along the corridor south of the hub.
	assert.Equal(t, "venue-near", trip.Stops[0].VenueID)
	assert.Equal(t, "venue-mid", trip.Stops[1].VenueID)
	assert.Equal(t, "venue-far", trip.Stops[2].VenueID)
}

func TestReorderStops_RewritesDenseOrders(t *testing.T) {
	trip, hubLoc, data, m := reorderFixture()

	reorderStops(trip, hubLoc, data, m, time.Second)

	for i, stop := range trip.Stops {
		assert.Equal(t, i+1, stop.StopOrder)
	}
}

func TestReorderStops_SkipsShortTrips(t *testing.T) {
	trip, hubLoc, data, m := reorderFixture()
	trip.Stops = trip.Stops[:2]

	reorderStops(trip, hubLoc, data, m, time.Second)

	assert.Equal(t, "venue-far", trip.Stops[0].VenueID, "two-stop trips keep their order")
}

func TestReorderStops_KeepsUnindexedStops(t *testing.T) {
	trip, hubLoc, data, m := reorderFixture()
	trip.Stops = append(trip.Stops, model.TripStop{
		VenueID: "venue-ghost", VenueName: "Ghost Field", StopOrder: 4, Action: model.ActionDeliver,
	})

	reorderStops(trip, hubLoc, data, m, time.Second)

	// The flat penalty makes the unindexed stop's position arbitrary;
	// the contract is that it survives with a dense order, wherever
	// the tour splices it in.
	require.Len(t, trip.Stops, 4)
	seen := make(map[string]bool)
	for i, stop := range trip.Stops {
		assert.Equal(t, i+1, stop.StopOrder)
		seen[stop.VenueID] = true
	}
	assert.True(t, seen["venue-ghost"], "unindexed stop must survive the reorder")
}

package solver

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// reasonNoVehicle is the unassigned reason used when no vehicle at any
// hub can take the trip. The cascade's diagnosis step keys off the
// word "available" in reasons, so the phrasing here is load-bearing.
const reasonNoVehicle = "No vehicle with sufficient capacity available"

// Planner runs the greedy assignment over clustered venues.
type Planner struct {
	timeout time.Duration
}

// NewPlanner creates a planner with the given solve-time budget. The
// budget only caps the stop-reordering pass; the greedy sweep itself
// always runs to completion.
func NewPlanner(timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Planner{timeout: timeout}
}

// planState is the per-run resource ledger.
type planState struct {
	usedVehicles  map[string]bool
	usedAssets    map[string]bool
	usedPersonnel map[string]bool
}

func newPlanState(preUsedAssets map[string]bool) *planState {
	st := &planState{
		usedVehicles:  make(map[string]bool),
		usedAssets:    make(map[string]bool),
		usedPersonnel: make(map[string]bool),
	}
	for id := range preUsedAssets {
		st.usedAssets[id] = true
	}
	return st
}

// OptimizeWeek builds trips for every cluster, heaviest demand first.
//
// preUsedAssets seeds the consumed-asset set; preseason passes use it
// to keep already-placed assets off later trips. Status is "partial"
// when any demand goes uncovered, "completed" otherwise.
func (p *Planner) OptimizeWeek(
	data *model.WeekData,
	m *Matrix,
	cons *Constraints,
	clusters []VenueCluster,
	preUsedAssets map[string]bool,
) *model.OptimizationResult {
	start := time.Now()
	st := newPlanState(preUsedAssets)
	result := &model.OptimizationResult{Status: model.RunCompleted}

	ordered := append([]VenueCluster(nil), clusters...)
	weight := func(c VenueCluster) float64 {
		total := 0.0
		for _, v := range c.Venues {
			for _, d := range cons.DemandsAtVenue(v.ID) {
				total += d.TotalWeight
			}
		}
		return total
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return weight(ordered[i]) > weight(ordered[j])
	})

	for _, cluster := range ordered {
		p.buildTripForCluster(data, m, cons, cluster, st, result)
	}

	result.SolveTimeMS = time.Since(start).Milliseconds()
	if result.HasUnassigned() {
		result.Status = model.RunPartial
	}
	return result
}

// buildTripForCluster reserves a vehicle, assets, and crew for one
// cluster and appends the trip (or unassigned demands) to the result.
func (p *Planner) buildTripForCluster(
	data *model.WeekData,
	m *Matrix,
	cons *Constraints,
	cluster VenueCluster,
	st *planState,
	result *model.OptimizationResult,
) {
	if len(cluster.Venues) == 0 {
		return
	}

	hub := p.chooseHub(data, cluster)
	if hub == nil {
		p.emitAllUnassigned(data, cons, cluster, reasonNoVehicle, result)
		return
	}

	vehicle, hub := p.reserveVehicle(data, hub, cluster, st, result)
	if vehicle == nil {
		p.emitAllUnassigned(data, cons, cluster, reasonNoVehicle, result)
		return
	}

	trip := model.Trip{
		VehicleID:   vehicle.ID,
		VehicleName: vehicle.Name,
		HubID:       hub.ID,
		HubName:     hub.Name,
	}

	totalWeight := 0.0
	stopOrder := 0
	for _, venue := range cluster.Venues {
		demands := cons.DemandsAtVenue(venue.ID)
		if len(demands) == 0 {
			continue
		}

		var demandTypes []string
		for _, d := range demands {
			_, w := p.assignAssets(data, cons, d, hub.ID, venue.ID, st, &trip, result)
			totalWeight += w
			for _, it := range d.Items {
				demandTypes = append(demandTypes, it.AssetType)
			}
		}

		// The stop is kept even when nothing was assignable; the
		// shortfall surfaces as unassigned demand instead.
		stopOrder++
		trip.Stops = append(trip.Stops, model.TripStop{
			VenueID:          venue.ID,
			VenueName:        venue.Name,
			CustomerID:       demands[0].CustomerID,
			StopOrder:        stopOrder,
			Action:           model.ActionDeliver,
			DemandAssetTypes: demandTypes,
		})
	}

	if len(trip.Stops) == 0 {
		// No venue in the cluster carried demand; release the vehicle
		// for later clusters.
		delete(st.usedVehicles, vehicle.ID)
		return
	}

	if vehicle.CapacityLbs != nil && totalWeight > *vehicle.CapacityLbs {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Vehicle %s may be overloaded: %.0f lbs vs %.0f lbs capacity",
			vehicle.Name, totalWeight, *vehicle.CapacityLbs))
	}

	p.assignPersonnel(data, hub, cluster, st, &trip, result)

	if len(trip.Stops) >= 3 {
		reorderStops(&trip, hub.Location(), data, m, minDuration(p.timeout, 5*time.Second))
	}

	miles, minutes := routeTotals(&trip, hub.Location(), data, m)
	trip.TotalMiles = round1(miles)
	trip.TotalDriveHrs = round2(minutes / 60)

	result.Trips = append(result.Trips, trip)
}

func (p *Planner) chooseHub(data *model.WeekData, cluster VenueCluster) *model.Hub {
	if loc, ok := cluster.Venues[0].Location(); ok {
		if hub := data.NearestHub(loc); hub != nil {
			return hub
		}
	}
	// Fall back to the hub chosen at clustering time (unlocated
	// singleton clusters have neither).
	for i := range data.Hubs {
		if data.Hubs[i].ID == cluster.HubID {
			return &data.Hubs[i]
		}
	}
	if len(data.Hubs) > 0 {
		return &data.Hubs[0]
	}
	return nil
}

// reserveVehicle takes a free vehicle at the hub, scanning the other
// hubs when the preferred one is dry. The returned hub is the one the
// vehicle departs from: a cross-hub reservation re-anchors the trip
// there, so assets, crew, and the route all follow the vehicle.
func (p *Planner) reserveVehicle(
	data *model.WeekData,
	hub *model.Hub,
	cluster VenueCluster,
	st *planState,
	result *model.OptimizationResult,
) (*model.Vehicle, *model.Hub) {
	for _, v := range data.VehiclesAtHub(hub.ID) {
		if !st.usedVehicles[v.ID] {
			st.usedVehicles[v.ID] = true
			return v, hub
		}
	}

	for i := range data.Hubs {
		other := &data.Hubs[i]
		if other.ID == hub.ID {
			continue
		}
		for _, v := range data.VehiclesAtHub(other.ID) {
			if st.usedVehicles[v.ID] {
				continue
			}
			st.usedVehicles[v.ID] = true
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Cross-hub: Using %s from %s for venue %s",
				v.Name, other.Name, cluster.Venues[0].Name))
			return v, other
		}
	}

	return nil, nil
}

// assignAssets fills one demand from assets on site at the venue or
// staged at the hub. Returns the count taken and their summed weight.
func (p *Planner) assignAssets(
	data *model.WeekData,
	cons *Constraints,
	d Demand,
	hubID, venueID string,
	st *planState,
	trip *model.Trip,
	result *model.OptimizationResult,
) (int, float64) {
	candidates := append(data.AssetsAtVenue(venueID), data.AssetsAtHub(hubID)...)

	taken := 0
	weight := 0.0
	for _, item := range d.Items {
		matched := 0
		for _, asset := range candidates {
			if matched >= item.Quantity {
				break
			}
			if st.usedAssets[asset.ID] {
				continue
			}
			if !MatchAssetToDemand(asset, item, cons, data.BrandingTasks) {
				continue
			}
			st.usedAssets[asset.ID] = true
			trip.AssetIDs = append(trip.AssetIDs, asset.ID)
			matched++
			taken++
			weight += AssetWeightEstimate(asset.AssetType)
		}
		if matched < item.Quantity {
			venueName := venueID
			if v, ok := data.Venues[venueID]; ok {
				venueName = v.Name
			}
			result.UnassignedDemands = append(result.UnassignedDemands, model.UnassignedDemand{
				CustomerID:   d.CustomerID,
				CustomerName: d.CustomerName,
				VenueID:      venueID,
				VenueName:    venueName,
				AssetType:    item.AssetType,
				Quantity:     item.Quantity - matched,
				Reason: fmt.Sprintf("Only %d of %d %s available",
					matched, item.Quantity, item.AssetType),
			})
		}
	}
	return taken, weight
}

// assignPersonnel reserves a driver (falling back to a tech who can
// drive) and one extra tech when available.
func (p *Planner) assignPersonnel(
	data *model.WeekData,
	hub *model.Hub,
	cluster VenueCluster,
	st *planState,
	trip *model.Trip,
	result *model.OptimizationResult,
) {
	people := data.PersonnelAtHub(hub.ID)

	takeByRole := func(roles ...model.PersonRole) *model.Person {
		for _, role := range roles {
			for _, person := range people {
				if person.Role == role && !st.usedPersonnel[person.ID] {
					st.usedPersonnel[person.ID] = true
					return person
				}
			}
		}
		return nil
	}

	driver := takeByRole(model.RoleDriver)
	if driver == nil {
		driver = takeByRole(model.RoleLeadTech, model.RoleServiceTech)
	}
	if driver == nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"No personnel available at %s for trip to %s",
			hub.Name, cluster.Venues[0].Name))
		return
	}
	trip.PersonnelIDs = append(trip.PersonnelIDs, driver.ID)

	if tech := takeByRole(model.RoleServiceTech, model.RoleLeadTech); tech != nil {
		trip.PersonnelIDs = append(trip.PersonnelIDs, tech.ID)
	}
}

// emitAllUnassigned records every contract item in the cluster as
// unassigned with the given reason.
func (p *Planner) emitAllUnassigned(
	data *model.WeekData,
	cons *Constraints,
	cluster VenueCluster,
	reason string,
	result *model.OptimizationResult,
) {
	for _, venue := range cluster.Venues {
		for _, d := range cons.DemandsAtVenue(venue.ID) {
			for _, item := range d.Items {
				result.UnassignedDemands = append(result.UnassignedDemands, model.UnassignedDemand{
					CustomerID:   d.CustomerID,
					CustomerName: d.CustomerName,
					VenueID:      venue.ID,
					VenueName:    venue.Name,
					AssetType:    item.AssetType,
					Quantity:     item.Quantity,
					Reason:       reason,
				})
			}
		}
	}
	log.Printf("[planner] cluster at %s skipped: %s", cluster.Venues[0].Name, reason)
}

// routeTotals sums matrix miles and minutes along hub → stops → hub.
// Legs whose endpoints are not in the matrix are skipped.
func routeTotals(
	trip *model.Trip,
	hubLoc geo.Coordinate,
	data *model.WeekData,
	m *Matrix,
) (float64, float64) {
	indices := make([]int, 0, len(trip.Stops)+2)
	indices = append(indices, m.LocationIndex(hubLoc))
	for _, stop := range trip.Stops {
		idx := -1
		if v, ok := data.Venues[stop.VenueID]; ok {
			if loc, has := v.Location(); has {
				idx = m.LocationIndex(loc)
			}
		}
		indices = append(indices, idx)
	}
	indices = append(indices, m.LocationIndex(hubLoc))

	miles, minutes := 0.0, 0.0
	for i := 0; i+1 < len(indices); i++ {
		from, to := indices[i], indices[i+1]
		if from < 0 || to < 0 {
			continue
		}
		e := m.Get(from, to)
		miles += e.Miles
		minutes += e.Minutes
	}
	return miles, minutes
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

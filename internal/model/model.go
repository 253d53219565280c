// Package model defines the domain entities for trip optimization.
package model

import (
	"time"

	"github.com/dragonseats/optimizer/pkg/geo"
)

// ─── Enumerations ───────────────────────────────────────────────────

// AssetCondition describes the physical state of an asset.
type AssetCondition string

const (
	ConditionInService    AssetCondition = "in_service"
	ConditionNeedsRepair  AssetCondition = "needs_repair"
	ConditionOutOfService AssetCondition = "out_of_service"
)

// AssetStatus describes where an asset currently sits.
type AssetStatus string

const (
	StatusAtHub     AssetStatus = "at_hub"
	StatusOnSite    AssetStatus = "on_site"
	StatusInTransit AssetStatus = "in_transit"
)

// PersonRole is a crew member's job function.
type PersonRole string

const (
	RoleDriver      PersonRole = "driver"
	RoleServiceTech PersonRole = "service_tech"
	RoleLeadTech    PersonRole = "lead_tech"
	RoleSales       PersonRole = "sales"
)

// BrandingStatus tracks a rebranding task through its lifecycle.
type BrandingStatus string

const (
	BrandingPending    BrandingStatus = "pending"
	BrandingInProgress BrandingStatus = "in_progress"
	BrandingCompleted  BrandingStatus = "completed"
)

// RunStatus is the terminal state of an optimization run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// StopAction is what happens at a trip stop.
type StopAction string

const (
	ActionDeliver StopAction = "deliver"
	ActionPickup  StopAction = "pickup"
	ActionBoth    StopAction = "both"
)

// SeasonPhasePreseason marks week-0 deployment games.
const SeasonPhasePreseason = "preseason"

// DefaultMaxDriveHours is the DOT-style daily drive limit applied when
// a person record carries none.
const DefaultMaxDriveHours = 11.0

// ─── Entities ───────────────────────────────────────────────────────

// Hub is a distribution site that owns vehicles, personnel, and staged
// assets.
type Hub struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	City  string  `json:"city"`
	State string  `json:"state"`
	Lat   float64 `json:"latitude"`
	Lng   float64 `json:"longitude"`
}

// Location returns the hub position labeled with the hub name.
func (h *Hub) Location() geo.Coordinate {
	return geo.Coordinate{Lat: h.Lat, Lng: h.Lng, Label: h.Name}
}

// Venue is a stadium or field where a customer plays home games. The
// coordinate is optional; venues without one cannot be clustered.
type Venue struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	CustomerID string   `json:"customer_id"`
	Lat        *float64 `json:"latitude"`
	Lng        *float64 `json:"longitude"`
	IsPrimary  bool     `json:"is_primary"`
}

// Location returns the venue position and whether it has one.
func (v *Venue) Location() (geo.Coordinate, bool) {
	if v.Lat == nil || v.Lng == nil {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lat: *v.Lat, Lng: *v.Lng, Label: v.Name}, true
}

// Game is one scheduled home game in a given season week. Week 0 rows
// are derived from week-1 games with the game time cleared.
type Game struct {
	ID              string  `json:"id"`
	CustomerID      string  `json:"customer_id"`
	CustomerName    string  `json:"customer_name"`
	VenueID         string  `json:"venue_id"`
	SeasonYear      int     `json:"season_year"`
	WeekNumber      int     `json:"week_number"`
	GameDate        string  `json:"game_date"` // YYYY-MM-DD
	GameTime        *string `json:"game_time"` // HH:MM:SS or HH:MM
	SidelinesServed int     `json:"sidelines_served"`
	SeasonPhase     string  `json:"season_phase"`
}

// ContractItem is one line of a customer's active contract: an asset
// type, optional model, quantity, and optional branding spec.
type ContractItem struct {
	ID           string  `json:"id"`
	ContractID   string  `json:"contract_id"`
	CustomerID   string  `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	AssetType    string  `json:"asset_type"`
	ModelVersion *string `json:"model_version"`
	Quantity     int     `json:"quantity"`
	BrandingSpec *string `json:"branding_spec"`
}

// Asset is one physical equipment unit.
type Asset struct {
	ID              string         `json:"id"`
	AssetType       string         `json:"asset_type"`
	ModelVersion    *string        `json:"model_version"`
	Condition       AssetCondition `json:"condition"`
	Status          AssetStatus    `json:"status"`
	HomeHubID       string         `json:"home_hub_id"`
	CurrentHubID    *string        `json:"current_hub_id"`
	CurrentVenueID  *string        `json:"current_venue_id"`
	CurrentTripID   *string        `json:"current_trip_id"`
	WeightLbs       float64        `json:"weight_lbs"`
	CurrentBranding *string        `json:"current_branding"`
}

// InService reports whether the asset can be deployed at all.
func (a *Asset) InService() bool {
	return a.Condition != ConditionOutOfService && a.Condition != ConditionNeedsRepair
}

// Vehicle is a delivery truck homed at a hub.
type Vehicle struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	HomeHubID   string   `json:"home_hub_id"`
	CapacityLbs *float64 `json:"capacity_lbs"`
	Status      string   `json:"status"`
}

// Person is a crew member homed at a hub.
type Person struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Role          PersonRole `json:"role"`
	HomeHubID     string     `json:"home_hub_id"`
	MaxDriveHours float64    `json:"max_drive_hours"`
}

// BrandingTask is a pending or completed rebrand of one asset.
type BrandingTask struct {
	ID           string         `json:"id"`
	AssetID      string         `json:"asset_id"`
	FromBranding *string        `json:"from_branding"`
	ToBranding   *string        `json:"to_branding"`
	HubID        string         `json:"hub_id"`
	NeededBy     *string        `json:"needed_by"`
	Status       BrandingStatus `json:"status"`
}

// AssetAssignment maps an asset to a customer for a season.
type AssetAssignment struct {
	ID          string `json:"id"`
	AssetID     string `json:"asset_id"`
	CustomerID  string `json:"customer_id"`
	SeasonYear  int    `json:"season_year"`
	IsPermanent bool   `json:"is_permanent"`
}

// ─── Week data ──────────────────────────────────────────────────────

// WeekData bundles every input the solver needs for one week.
type WeekData struct {
	SeasonYear    int
	WeekNumber    int
	Hubs          []Hub
	Venues        map[string]*Venue // by venue ID
	Games         []Game
	ContractItems []ContractItem
	Assets        []Asset
	Vehicles      []Vehicle
	Personnel     []Person
	BrandingTasks []BrandingTask
	Assignments   []AssetAssignment
}

// GameVenues returns the distinct venues with games this week that
// appear in the venue map, in game order.
func (w *WeekData) GameVenues() []*Venue {
	seen := make(map[string]bool)
	var venues []*Venue
	for _, g := range w.Games {
		if g.VenueID == "" || seen[g.VenueID] {
			continue
		}
		v, ok := w.Venues[g.VenueID]
		if !ok {
			continue
		}
		seen[g.VenueID] = true
		venues = append(venues, v)
	}
	return venues
}

// HubLocations returns one labeled coordinate per hub.
func (w *WeekData) HubLocations() []geo.Coordinate {
	locs := make([]geo.Coordinate, 0, len(w.Hubs))
	for i := range w.Hubs {
		locs = append(locs, w.Hubs[i].Location())
	}
	return locs
}

// AllLocations returns hub locations followed by game-venue locations,
// deduplicated by coordinate key.
func (w *WeekData) AllLocations() []geo.Coordinate {
	var locs []geo.Coordinate
	seen := make(map[geo.Key]bool)
	add := func(c geo.Coordinate) {
		k := c.Key()
		if seen[k] {
			return
		}
		seen[k] = true
		locs = append(locs, c)
	}
	for i := range w.Hubs {
		add(w.Hubs[i].Location())
	}
	for _, v := range w.GameVenues() {
		if loc, ok := v.Location(); ok {
			add(loc)
		}
	}
	return locs
}

// ContractItemsForCustomer returns the customer's contract items.
func (w *WeekData) ContractItemsForCustomer(customerID string) []ContractItem {
	var items []ContractItem
	for _, it := range w.ContractItems {
		if it.CustomerID == customerID {
			items = append(items, it)
		}
	}
	return items
}

// AssetsAtHub returns at-hub assets whose current hub is hubID.
func (w *WeekData) AssetsAtHub(hubID string) []*Asset {
	var assets []*Asset
	for i := range w.Assets {
		a := &w.Assets[i]
		if a.Status == StatusAtHub && a.CurrentHubID != nil && *a.CurrentHubID == hubID {
			assets = append(assets, a)
		}
	}
	return assets
}

// AssetsAtVenue returns on-site assets currently at venueID.
func (w *WeekData) AssetsAtVenue(venueID string) []*Asset {
	var assets []*Asset
	for i := range w.Assets {
		a := &w.Assets[i]
		if a.Status == StatusOnSite && a.CurrentVenueID != nil && *a.CurrentVenueID == venueID {
			assets = append(assets, a)
		}
	}
	return assets
}

// VehiclesAtHub returns the vehicles homed at hubID.
func (w *WeekData) VehiclesAtHub(hubID string) []*Vehicle {
	var vehicles []*Vehicle
	for i := range w.Vehicles {
		if w.Vehicles[i].HomeHubID == hubID {
			vehicles = append(vehicles, &w.Vehicles[i])
		}
	}
	return vehicles
}

// PersonnelAtHub returns the personnel homed at hubID.
func (w *WeekData) PersonnelAtHub(hubID string) []*Person {
	var people []*Person
	for i := range w.Personnel {
		if w.Personnel[i].HomeHubID == hubID {
			people = append(people, &w.Personnel[i])
		}
	}
	return people
}

// NearestHub returns the hub closest to loc by great-circle distance,
// or nil if there are no hubs.
func (w *WeekData) NearestHub(loc geo.Coordinate) *Hub {
	var best *Hub
	bestDist := 0.0
	for i := range w.Hubs {
		d := geo.HaversineMiles(loc, w.Hubs[i].Location())
		if best == nil || d < bestDist {
			best = &w.Hubs[i]
			bestDist = d
		}
	}
	return best
}

// ─── Plan output ────────────────────────────────────────────────────

// TripStop is one venue visit on a trip.
type TripStop struct {
	VenueID          string     `json:"venue_id"`
	VenueName        string     `json:"venue_name"`
	CustomerID       string     `json:"customer_id"`
	StopOrder        int        `json:"stop_order"`
	Action           StopAction `json:"action"`
	RequiresHubRet   bool       `json:"requires_hub_return"`
	HubReturnReason  string     `json:"hub_return_reason,omitempty"`
	NextVenueID      string     `json:"next_venue_id,omitempty"`
	NextVenueName    string     `json:"next_venue_name,omitempty"`
	DemandAssetTypes []string   `json:"demand_asset_types,omitempty"`
}

// Trip is one vehicle's round trip from a hub through its stops.
type Trip struct {
	VehicleID      string     `json:"vehicle_id"`
	VehicleName    string     `json:"vehicle_name"`
	HubID          string     `json:"hub_id"`
	HubName        string     `json:"hub_name"`
	Stops          []TripStop `json:"stops"`
	AssetIDs       []string   `json:"asset_ids"`
	PersonnelIDs   []string   `json:"personnel_ids"`
	TotalMiles     float64    `json:"total_miles"`
	TotalDriveHrs  float64    `json:"total_drive_hrs"`
	OptimizerScore float64    `json:"optimizer_score"`
	DepartAt       *time.Time `json:"depart_at,omitempty"`
	ReturnAt       *time.Time `json:"return_at,omitempty"`
}

// UnassignedDemand is one contract item the plan could not cover.
type UnassignedDemand struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	VenueID      string `json:"venue_id"`
	VenueName    string `json:"venue_name"`
	AssetType    string `json:"asset_type"`
	Quantity     int    `json:"quantity"`
	Reason       string `json:"reason"`
}

// RelaxationEntry records one cascade step that was applied.
type RelaxationEntry struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// OptimizationResult is the full outcome of one planning run.
type OptimizationResult struct {
	Trips                 []Trip             `json:"trips"`
	UnassignedDemands     []UnassignedDemand `json:"unassigned_demands"`
	Warnings              []string           `json:"warnings"`
	Errors                []string           `json:"errors"`
	ConstraintRelaxations []RelaxationEntry  `json:"constraint_relaxations"`
	SolveTimeMS           int64              `json:"solve_time_ms"`
	Status                RunStatus          `json:"status"`
	AverageScore          float64            `json:"average_score"`
}

// HasUnassigned reports whether any demand went uncovered.
func (r *OptimizationResult) HasUnassigned() bool {
	return len(r.UnassignedDemands) > 0
}

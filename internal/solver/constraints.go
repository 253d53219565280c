package solver

import (
	"time"

	"github.com/dragonseats/optimizer/internal/model"
)

// Default soft-constraint weights. IsRelaxed compares against these.
const (
	defaultWeightMiles       = 1.0
	defaultWeightVehicles    = 0.8
	defaultWeightClosestHub  = 0.6
	defaultWeightRebranding  = 0.7
	defaultWeightCompactness = 0.5
)

// Per-type weight estimates in pounds, used when sizing demands.
var assetWeightEstimates = map[string]float64{
	"heated_bench":     150,
	"cooling_bench":    150,
	"hybrid_bench":     150,
	"dragon_shader":    200,
	"heated_foot_deck": 50,
}

const defaultAssetWeightLbs = 100

// AssetWeightEstimate returns the estimated weight for an asset type.
func AssetWeightEstimate(assetType string) float64 {
	if w, ok := assetWeightEstimates[assetType]; ok {
		return w
	}
	return defaultAssetWeightLbs
}

// TimeWindow is the allowed arrival interval for a delivery.
type TimeWindow struct {
	EarliestArrival time.Time
	LatestArrival   time.Time
	ServiceMinutes  int
}

// Demand is the bill of materials one game needs at its venue.
type Demand struct {
	GameID        string
	CustomerID    string
	CustomerName  string
	VenueID       string
	Items         []model.ContractItem
	TotalQuantity int
	TotalWeight   float64
	Window        *TimeWindow
}

// SoftWeights are the tunable preferences of the planner. The cascade
// lowers them step by step.
type SoftWeights struct {
	Miles       float64
	Vehicles    float64
	ClosestHub  float64
	Rebranding  float64
	Compactness float64
}

// DefaultSoftWeights returns the unrelaxed weight set.
func DefaultSoftWeights() SoftWeights {
	return SoftWeights{
		Miles:       defaultWeightMiles,
		Vehicles:    defaultWeightVehicles,
		ClosestHub:  defaultWeightClosestHub,
		Rebranding:  defaultWeightRebranding,
		Compactness: defaultWeightCompactness,
	}
}

// Constraints is everything the planner must honor for one week.
type Constraints struct {
	Demands         []Demand
	BlockedAssetIDs map[string]bool
	Weights         SoftWeights
	VehiclesPerHub  map[string]int
	PersonnelPerHub map[string]int
}

// IsRelaxed reports whether any soft weight sits below its default.
func (c *Constraints) IsRelaxed() bool {
	w := c.Weights
	return w.Miles < defaultWeightMiles ||
		w.Vehicles < defaultWeightVehicles ||
		w.ClosestHub < defaultWeightClosestHub ||
		w.Rebranding < defaultWeightRebranding ||
		w.Compactness < defaultWeightCompactness
}

// DemandsAtVenue returns the demands targeting venueID.
func (c *Constraints) DemandsAtVenue(venueID string) []Demand {
	var out []Demand
	for _, d := range c.Demands {
		if d.VenueID == venueID {
			out = append(out, d)
		}
	}
	return out
}

// BuildConstraints derives demands, time windows, and blocked assets
// from the week data.
//
// One Demand is built per game whose customer has contract items. A
// time window applies only outside preseason and only when the game
// has both a date and a time of day: earliest arrival is 24 h before
// kickoff, latest is setupBufferHours before, service is 60 minutes.
// Assets with a pending or in-progress branding task are blocked.
func BuildConstraints(data *model.WeekData, setupBufferHours float64) *Constraints {
	c := &Constraints{
		BlockedAssetIDs: make(map[string]bool),
		Weights:         DefaultSoftWeights(),
		VehiclesPerHub:  make(map[string]int),
		PersonnelPerHub: make(map[string]int),
	}
	if setupBufferHours <= 0 {
		setupBufferHours = 4
	}

	for _, g := range data.Games {
		if g.VenueID == "" {
			continue
		}
		items := data.ContractItemsForCustomer(g.CustomerID)
		if len(items) == 0 {
			continue
		}

		d := Demand{
			GameID:       g.ID,
			CustomerID:   g.CustomerID,
			CustomerName: g.CustomerName,
			VenueID:      g.VenueID,
			Items:        items,
		}
		for _, it := range items {
			d.TotalQuantity += it.Quantity
			d.TotalWeight += float64(it.Quantity) * AssetWeightEstimate(it.AssetType)
		}
		if g.WeekNumber != 0 {
			d.Window = buildTimeWindow(g, setupBufferHours)
		}
		c.Demands = append(c.Demands, d)
	}

	for _, task := range data.BrandingTasks {
		if task.Status == model.BrandingPending || task.Status == model.BrandingInProgress {
			c.BlockedAssetIDs[task.AssetID] = true
		}
	}

	for _, v := range data.Vehicles {
		c.VehiclesPerHub[v.HomeHubID]++
	}
	for _, p := range data.Personnel {
		c.PersonnelPerHub[p.HomeHubID]++
	}

	return c
}

func buildTimeWindow(g model.Game, setupBufferHours float64) *TimeWindow {
	if g.GameDate == "" || g.GameTime == nil || *g.GameTime == "" {
		return nil
	}

	gameAt, err := time.Parse("2006-01-02 15:04:05", g.GameDate+" "+*g.GameTime)
	if err != nil {
		gameAt, err = time.Parse("2006-01-02 15:04", g.GameDate+" "+*g.GameTime)
		if err != nil {
			return nil
		}
	}

	return &TimeWindow{
		EarliestArrival: gameAt.Add(-24 * time.Hour),
		LatestArrival:   gameAt.Add(-time.Duration(setupBufferHours * float64(time.Hour))),
		ServiceMinutes:  60,
	}
}

// MatchAssetToDemand reports whether the asset can satisfy the
// contract item under the active constraints.
func MatchAssetToDemand(
	asset *model.Asset,
	item model.ContractItem,
	c *Constraints,
	tasks []model.BrandingTask,
) bool {
	if c.BlockedAssetIDs[asset.ID] {
		return false
	}
	if !asset.InService() {
		return false
	}
	if asset.AssetType != item.AssetType {
		return false
	}
	if item.ModelVersion != nil && *item.ModelVersion != "" {
		if asset.ModelVersion == nil || *asset.ModelVersion != *item.ModelVersion {
			return false
		}
	}
	return brandingMatches(asset, item, tasks)
}

// brandingMatches passes when the contract carries no branding spec,
// the asset is unbranded, the asset already wears the spec, or a
// completed rebrand task moved the asset to the spec.
func brandingMatches(asset *model.Asset, item model.ContractItem, tasks []model.BrandingTask) bool {
	if item.BrandingSpec == nil || *item.BrandingSpec == "" {
		return true
	}
	if asset.CurrentBranding == nil || *asset.CurrentBranding == "" {
		return true
	}
	if *asset.CurrentBranding == *item.BrandingSpec {
		return true
	}
	for _, task := range tasks {
		if task.AssetID == asset.ID &&
			task.Status == model.BrandingCompleted &&
			task.ToBranding != nil &&
			*task.ToBranding == *item.BrandingSpec {
			return true
		}
	}
	return false
}

package solver

import (
	"math"

	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// Scoring weights; they sum to 1.0.
const (
	scoreWeightDistance    = 0.40
	scoreWeightCapacity    = 0.20
	scoreWeightTime        = 0.15
	scoreWeightConstraints = 0.15
	scoreWeightMultiStop   = 0.10
)

// nominalCapacityLbs is the reference payload for utilization scoring,
// independent of the vehicle's declared capacity.
const nominalCapacityLbs = 10000.0

// idealRouteFactor is the ratio a well-routed multi-stop trip achieves
// against the theoretical out-and-back minimum.
const idealRouteFactor = 0.77

// ScoreTrip rates one trip from 0 to 100 across distance efficiency,
// capacity utilization, time efficiency, constraint satisfaction, and
// a multi-stop bonus. The result is rounded to one decimal.
func ScoreTrip(trip *model.Trip, data *model.WeekData, result *model.OptimizationResult) float64 {
	score := scoreWeightDistance*distanceScore(trip, data) +
		scoreWeightCapacity*capacityScore(trip, data) +
		scoreWeightTime*timeScore(trip) +
		scoreWeightConstraints*constraintScore(result) +
		scoreWeightMultiStop*multiStopScore(trip)
	return round1(clamp(score, 0, 100))
}

// ScoreRun sets every trip's score and returns the run average, less a
// penalty of 5 points per unassigned demand capped at 30. An empty run
// scores 100 unless demands went uncovered.
func ScoreRun(result *model.OptimizationResult, data *model.WeekData) float64 {
	if len(result.Trips) == 0 {
		if result.HasUnassigned() {
			return 0
		}
		return 100
	}

	total := 0.0
	for i := range result.Trips {
		s := ScoreTrip(&result.Trips[i], data, result)
		result.Trips[i].OptimizerScore = s
		total += s
	}
	avg := total / float64(len(result.Trips))

	if n := len(result.UnassignedDemands); n > 0 {
		avg -= math.Min(30, float64(n)*5)
	}
	return round1(clamp(avg, 0, 100))
}

// distanceScore compares the actual route against twice the distance
// to the furthest stop, the theoretical out-and-back floor.
func distanceScore(trip *model.Trip, data *model.WeekData) float64 {
	if trip.TotalMiles <= 0 {
		return 100
	}

	hubLoc, ok := hubLocationByName(trip.HubName, data)
	if !ok {
		return 50
	}

	furthest := 0.0
	for _, stop := range trip.Stops {
		v, present := data.Venues[stop.VenueID]
		if !present {
			continue
		}
		loc, has := v.Location()
		if !has {
			continue
		}
		if d := geo.HaversineMiles(hubLoc, loc); d > furthest {
			furthest = d
		}
	}

	if furthest <= 0 {
		return 50
	}

	minRoundTrip := 2 * furthest
	ratio := minRoundTrip / trip.TotalMiles
	adjusted := math.Min(ratio/idealRouteFactor, 1.0)
	return clamp(100*adjusted, 0, 100)
}

func capacityScore(trip *model.Trip, data *model.WeekData) float64 {
	if len(trip.AssetIDs) == 0 {
		return 0
	}

	typeByID := make(map[string]string, len(data.Assets))
	for i := range data.Assets {
		typeByID[data.Assets[i].ID] = data.Assets[i].AssetType
	}

	weight := 0.0
	for _, id := range trip.AssetIDs {
		weight += AssetWeightEstimate(typeByID[id])
	}

	u := weight / nominalCapacityLbs
	switch {
	case u >= 0.5 && u <= 0.9:
		return 100
	case u > 0.9:
		return math.Max(60, 100-(u-0.9)*200)
	default:
		return math.Max(20, u/0.5*100)
	}
}

func timeScore(trip *model.Trip) float64 {
	if trip.TotalDriveHrs <= 0 {
		return 100
	}
	r := trip.TotalDriveHrs / model.DefaultMaxDriveHours
	switch {
	case r <= 0.7:
		return 100
	case r <= 0.9:
		return 80 + (0.9-r)/0.2*20
	case r <= 1.0:
		return 50 + (1.0-r)/0.1*30
	default:
		return math.Max(0, 50-(r-1.0)*100)
	}
}

func constraintScore(result *model.OptimizationResult) float64 {
	if len(result.ConstraintRelaxations) == 0 {
		return 100
	}
	score := 100.0
	for _, entry := range result.ConstraintRelaxations {
		score -= relaxationPenalty(entry.Action)
	}
	return math.Max(0, score)
}

func relaxationPenalty(action string) float64 {
	switch action {
	case "relaxed_soft_constraints":
		return 10
	case "relaxed_branding":
		return 20
	case "split_multi_stop":
		return 15
	case "cross_hub_assignments":
		return 25
	case "partial_solution":
		return 30
	default:
		return 10
	}
}

func multiStopScore(trip *model.Trip) float64 {
	switch n := len(trip.Stops); {
	case n >= 4:
		return 100
	case n == 3:
		return 90
	case n == 2:
		return 75
	default:
		return 50
	}
}

func hubLocationByName(name string, data *model.WeekData) (geo.Coordinate, bool) {
	for i := range data.Hubs {
		if data.Hubs[i].Name == name {
			return data.Hubs[i].Location(), true
		}
	}
	return geo.Coordinate{}, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package solver

import (
	"fmt"
	"log"
	"time"

	"github.com/dragonseats/optimizer/internal/model"
)

// maxPreseasonPasses caps the week-0 deployment loop.
const maxPreseasonPasses = 10

// OptimizeWeek0 plans the preseason deployment as repeated passes.
//
// Physically, trucks make multiple runs over several days, but an
// asset shipped to a venue stays there. Each pass therefore reuses
// vehicles and crew with a fresh ledger while the consumed-asset set
// carries over. Demands fully served by an earlier pass are excluded
// and the leftover venues re-clustered before the next pass. The loop
// ends when everything is covered, a pass produces no trips or no new
// asset consumption, the 3x solve budget runs out, or the pass cap is
// reached.
func (p *Planner) OptimizeWeek0(
	data *model.WeekData,
	m *Matrix,
	cons *Constraints,
	maxRadiusMiles float64,
	maxStops int,
) *model.OptimizationResult {
	start := time.Now()
	budget := 3 * p.timeout

	aggregate := &model.OptimizationResult{Status: model.RunCompleted}
	usedAssets := make(map[string]bool)
	served := make(map[[2]string]bool) // (venue ID, customer ID)

	remaining := cons.Demands

	for pass := 1; pass <= maxPreseasonPasses; pass++ {
		if len(remaining) == 0 {
			break
		}

		elapsed := time.Since(start)
		if elapsed >= budget {
			aggregate.Warnings = append(aggregate.Warnings,
				fmt.Sprintf("Time budget exceeded after %d passes", pass-1))
			break
		}

		passCons := *cons
		passCons.Demands = remaining
		passClusters := clusterRemaining(data, m, remaining, maxRadiusMiles, maxStops)

		passPlanner := NewPlanner(minDuration(p.timeout, budget-elapsed))
		result := passPlanner.OptimizeWeek(data, m, &passCons, passClusters, usedAssets)

		log.Printf("[week0] pass %d: %d trips, %d unassigned",
			pass, len(result.Trips), len(result.UnassignedDemands))

		if len(result.Trips) == 0 {
			aggregate.Warnings = append(aggregate.Warnings,
				fmt.Sprintf("Pass %d: No trips generated, %d demands remain", pass, len(remaining)))
			aggregate.UnassignedDemands = append(aggregate.UnassignedDemands, result.UnassignedDemands...)
			break
		}

		newAssets := 0
		for _, trip := range result.Trips {
			for _, id := range trip.AssetIDs {
				if !usedAssets[id] {
					usedAssets[id] = true
					newAssets++
				}
			}
			for _, stop := range trip.Stops {
				served[[2]string{stop.VenueID, stop.CustomerID}] = true
			}
		}

		aggregate.Trips = append(aggregate.Trips, result.Trips...)
		aggregate.Warnings = append(aggregate.Warnings, result.Warnings...)
		aggregate.Warnings = append(aggregate.Warnings,
			fmt.Sprintf("Pass %d: %d trips generated", pass, len(result.Trips)))

		if newAssets == 0 {
			aggregate.Warnings = append(aggregate.Warnings,
				fmt.Sprintf("Pass %d: No new assets consumed, stopping", pass))
			aggregate.UnassignedDemands = append(aggregate.UnassignedDemands, result.UnassignedDemands...)
			break
		}

		remaining = filterServed(remaining, served)
		if len(remaining) == 0 {
			break
		}
		if !result.HasUnassigned() {
			break
		}
	}

	aggregate.SolveTimeMS = time.Since(start).Milliseconds()
	if aggregate.HasUnassigned() {
		aggregate.Status = model.RunPartial
	}
	return aggregate
}

func filterServed(demands []Demand, served map[[2]string]bool) []Demand {
	var out []Demand
	for _, d := range demands {
		if served[[2]string{d.VenueID, d.CustomerID}] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// clusterRemaining re-clusters only the venues that still have
// unserved demands.
func clusterRemaining(
	data *model.WeekData,
	m *Matrix,
	demands []Demand,
	maxRadiusMiles float64,
	maxStops int,
) []VenueCluster {
	wanted := make(map[string]bool, len(demands))
	for _, d := range demands {
		wanted[d.VenueID] = true
	}

	// Restrict the game list so clustering only sees venues that
	// still need service.
	trimmed := *data
	trimmed.Games = nil
	for _, g := range data.Games {
		if wanted[g.VenueID] {
			trimmed.Games = append(trimmed.Games, g)
		}
	}
	return ClusterVenues(&trimmed, m, maxRadiusMiles, maxStops)
}

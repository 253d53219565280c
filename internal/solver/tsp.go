package solver

import (
	"time"

	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// tspPenalty is the integer cost charged on legs into or out of a stop
// that is not in the matrix, keeping unindexed stops tour-able without
// a real distance.
const tspPenalty = 10000

// reorderStops re-sequences a trip's stops as a depot-closed tour from
// the hub, minimizing integer miles (miles x 10 for precision).
//
// Nearest-neighbor seeds the tour and 2-opt improves it until the
// deadline. The new order is applied only when it covers every stop;
// otherwise the original sequence is kept.
func reorderStops(
	trip *model.Trip,
	hubLoc geo.Coordinate,
	data *model.WeekData,
	m *Matrix,
	budget time.Duration,
) {
	n := len(trip.Stops)
	if n < 3 {
		return
	}
	deadline := time.Now().Add(budget)

	// Node 0 is the hub depot; nodes 1..n are the stops.
	cost := buildCostMatrix(trip, hubLoc, data, m)

	tour := nearestNeighborTour(cost, n)
	tour = twoOpt(cost, tour, deadline)

	if len(tour) != n {
		return
	}

	reordered := make([]model.TripStop, 0, n)
	for order, node := range tour {
		stop := trip.Stops[node-1]
		stop.StopOrder = order + 1
		reordered = append(reordered, stop)
	}
	trip.Stops = reordered
}

func buildCostMatrix(
	trip *model.Trip,
	hubLoc geo.Coordinate,
	data *model.WeekData,
	m *Matrix,
) [][]int {
	n := len(trip.Stops)
	indices := make([]int, n+1)
	indices[0] = m.LocationIndex(hubLoc)
	for i, stop := range trip.Stops {
		indices[i+1] = -1
		if v, ok := data.Venues[stop.VenueID]; ok {
			if loc, has := v.Location(); has {
				indices[i+1] = m.LocationIndex(loc)
			}
		}
	}

	cost := make([][]int, n+1)
	for i := range cost {
		cost[i] = make([]int, n+1)
		for j := range cost[i] {
			if i == j {
				continue
			}
			if indices[i] < 0 || indices[j] < 0 {
				cost[i][j] = tspPenalty
				continue
			}
			cost[i][j] = int(m.MilesBetween(indices[i], indices[j]) * 10)
		}
	}
	return cost
}

// nearestNeighborTour greedily builds a tour over nodes 1..n starting
// from the depot (node 0).
func nearestNeighborTour(cost [][]int, n int) []int {
	visited := make([]bool, n+1)
	tour := make([]int, 0, n)
	current := 0
	for len(tour) < n {
		best, bestCost := -1, 0
		for node := 1; node <= n; node++ {
			if visited[node] {
				continue
			}
			if best == -1 || cost[current][node] < bestCost {
				best = node
				bestCost = cost[current][node]
			}
		}
		visited[best] = true
		tour = append(tour, best)
		current = best
	}
	return tour
}

// twoOpt repeatedly reverses tour segments while an improvement exists
// or the deadline passes. Tour cost includes the depot legs.
func twoOpt(cost [][]int, tour []int, deadline time.Time) []int {
	n := len(tour)
	if n < 3 {
		return tour
	}

	legCost := func(t []int) int {
		total := cost[0][t[0]]
		for i := 0; i+1 < n; i++ {
			total += cost[t[i]][t[i+1]]
		}
		return total + cost[t[n-1]][0]
	}

	best := append([]int(nil), tour...)
	bestCost := legCost(best)

	improved := true
	for improved && time.Now().Before(deadline) {
		improved = false
		for i := 0; i < n-1 && time.Now().Before(deadline); i++ {
			for j := i + 1; j < n; j++ {
				cand := append([]int(nil), best...)
				for a, b := i, j; a < b; a, b = a+1, b-1 {
					cand[a], cand[b] = cand[b], cand[a]
				}
				if c := legCost(cand); c < bestCost {
					best = cand
					bestCost = c
					improved = true
				}
			}
		}
	}
	return best
}

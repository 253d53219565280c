package solver

import (
	"sort"

	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// VenueCluster is a group of venues that one trip can serve.
type VenueCluster struct {
	Venues  []*model.Venue // ordered nearest-neighbor from the hub
	HubID   string
	HubName string
	Seed    *model.Venue
}

// ClusterVenues groups this week's game venues into multi-stop trip
// candidates.
//
// Venues without coordinates are emitted as trailing singleton
// clusters. The rest are sorted by distance to their nearest hub
// descending, because far venues gain the most from shared trips, then
// greedily grouped: each unassigned venue seeds a cluster and absorbs
// later venues within maxRadiusMiles of the seed, up to maxStops.
// Members are finally ordered nearest-neighbor starting from the
// cluster's hub, using matrix miles when both endpoints are indexed
// and haversine otherwise. Ties break by position in the sorted list,
// so identical inputs always cluster identically.
func ClusterVenues(
	data *model.WeekData,
	m *Matrix,
	maxRadiusMiles float64,
	maxStops int,
) []VenueCluster {
	if maxRadiusMiles <= 0 {
		maxRadiusMiles = 150
	}
	if maxStops <= 0 {
		maxStops = 4
	}

	venues := data.GameVenues()

	var located []*model.Venue
	var unlocated []*model.Venue
	for _, v := range venues {
		if _, ok := v.Location(); ok {
			located = append(located, v)
		} else {
			unlocated = append(unlocated, v)
		}
	}

	hubDist := make(map[string]float64, len(located))
	for _, v := range located {
		loc, _ := v.Location()
		if hub := data.NearestHub(loc); hub != nil {
			hubDist[v.ID] = geo.HaversineMiles(loc, hub.Location())
		}
	}
	sort.SliceStable(located, func(i, j int) bool {
		return hubDist[located[i].ID] > hubDist[located[j].ID]
	})

	assigned := make(map[string]bool, len(located))
	var clusters []VenueCluster

	for _, seed := range located {
		if assigned[seed.ID] {
			continue
		}
		assigned[seed.ID] = true
		seedLoc, _ := seed.Location()

		members := []*model.Venue{seed}
		for _, cand := range located {
			if len(members) >= maxStops {
				break
			}
			if assigned[cand.ID] {
				continue
			}
			candLoc, _ := cand.Location()
			if geo.HaversineMiles(seedLoc, candLoc) <= maxRadiusMiles {
				assigned[cand.ID] = true
				members = append(members, cand)
			}
		}

		cluster := VenueCluster{Venues: members, Seed: seed}
		if hub := data.NearestHub(seedLoc); hub != nil {
			cluster.HubID = hub.ID
			cluster.HubName = hub.Name
			cluster.Venues = orderFromHub(hub.Location(), members, m)
		}
		clusters = append(clusters, cluster)
	}

	for _, v := range unlocated {
		clusters = append(clusters, VenueCluster{Venues: []*model.Venue{v}, Seed: v})
	}

	return clusters
}

// SplitClusters breaks every cluster into single-stop clusters while
// keeping each venue's hub association.
func SplitClusters(clusters []VenueCluster) []VenueCluster {
	var split []VenueCluster
	for _, c := range clusters {
		for _, v := range c.Venues {
			split = append(split, VenueCluster{
				Venues:  []*model.Venue{v},
				HubID:   c.HubID,
				HubName: c.HubName,
				Seed:    v,
			})
		}
	}
	return split
}

// orderFromHub sequences venues nearest-neighbor starting at the hub.
func orderFromHub(hub geo.Coordinate, venues []*model.Venue, m *Matrix) []*model.Venue {
	if len(venues) <= 1 {
		return venues
	}

	remaining := append([]*model.Venue(nil), venues...)
	ordered := make([]*model.Venue, 0, len(venues))
	current := hub

	dist := func(from geo.Coordinate, v *model.Venue) float64 {
		to, _ := v.Location()
		if m != nil {
			fi := m.LocationIndex(from)
			ti := m.LocationIndex(to)
			if fi >= 0 && ti >= 0 {
				return m.MilesBetween(fi, ti)
			}
		}
		return geo.HaversineMiles(from, to)
	}

	for len(remaining) > 0 {
		bestIdx := 0
		bestDist := dist(current, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if d := dist(current, remaining[i]); d < bestDist {
				bestIdx = i
				bestDist = d
			}
		}
		next := remaining[bestIdx]
		ordered = append(ordered, next)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		current, _ = next.Location()
	}

	return ordered
}

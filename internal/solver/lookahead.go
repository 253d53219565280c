package solver

import (
	"fmt"

	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// Disposition is what happens to equipment at a stop after the game.
type Disposition string

const (
	DispositionLeave   Disposition = "leave_on_site"
	DispositionReroute Disposition = "reroute_to_next_venue"
	DispositionReturn  Disposition = "return_to_hub"
)

// Reroute distance limits in miles.
const (
	sameCustomerRerouteLimit = 500
	anyCustomerRerouteLimit  = 200
)

const finalWeek = 18

// StopDisposition is the lookahead decision for one stop.
type StopDisposition struct {
	Disposition   Disposition
	Reason        string
	NextVenueID   string
	NextVenueName string
}

// DetermineDisposition decides a stop's post-game action from the
// following week's schedule. First matching rule wins: preseason
// deployments always stay put, week 18 sends everything home, and
// otherwise the same customer's next game decides (same venue stays,
// a nearby next venue reroutes, a far one returns). When the customer
// gives no signal, any customer's next-week venue within a short
// radius still earns a reroute.
func DetermineDisposition(
	stop *model.TripStop,
	week int,
	data *model.WeekData,
	nextGames []model.Game,
	nextVenues map[string]*model.Venue,
) StopDisposition {
	if week == 0 {
		return StopDisposition{Disposition: DispositionLeave}
	}
	if week >= finalWeek {
		return StopDisposition{
			Disposition: DispositionReturn,
			Reason:      "End of season — all assets return to hub",
		}
	}
	if len(nextGames) == 0 {
		return StopDisposition{Disposition: DispositionLeave}
	}

	stopLoc, hasLoc := stopLocation(stop, data)

	customerPlaysNext := false
	for _, g := range nextGames {
		if g.CustomerID != stop.CustomerID {
			continue
		}
		customerPlaysNext = true
		if g.VenueID == stop.VenueID {
			return StopDisposition{Disposition: DispositionLeave}
		}
		next, ok := nextVenues[g.VenueID]
		if !ok {
			continue
		}
		nextLoc, nextHasLoc := next.Location()
		if !hasLoc || !nextHasLoc {
			continue
		}
		d := geo.HaversineMiles(stopLoc, nextLoc)
		if d < sameCustomerRerouteLimit {
			return StopDisposition{
				Disposition:   DispositionReroute,
				NextVenueID:   next.ID,
				NextVenueName: next.Name,
			}
		}
		return StopDisposition{
			Disposition: DispositionReturn,
			Reason:      fmt.Sprintf("Next venue too far (%.0f mi) — return to hub", d),
		}
	}
	if !customerPlaysNext {
		// Bye week; leave equipment in place for the week after.
		return StopDisposition{Disposition: DispositionLeave}
	}

	// The customer plays somewhere unresolvable. Reroute to any
	// customer's nearby next-week venue if one is close enough.
	if hasLoc {
		var bestVenue *model.Venue
		bestDist := 0.0
		for _, g := range nextGames {
			next, ok := nextVenues[g.VenueID]
			if !ok {
				continue
			}
			nextLoc, nextHasLoc := next.Location()
			if !nextHasLoc {
				continue
			}
			d := geo.HaversineMiles(stopLoc, nextLoc)
			if d <= anyCustomerRerouteLimit && (bestVenue == nil || d < bestDist) {
				bestVenue = next
				bestDist = d
			}
		}
		if bestVenue != nil {
			return StopDisposition{
				Disposition:   DispositionReroute,
				NextVenueID:   bestVenue.ID,
				NextVenueName: bestVenue.Name,
			}
		}
	}

	return StopDisposition{Disposition: DispositionLeave}
}

// ApplyPostGameDisposition computes and writes dispositions onto every
// stop of every trip, emitting a warning per reroute.
func ApplyPostGameDisposition(
	result *model.OptimizationResult,
	week int,
	data *model.WeekData,
	nextGames []model.Game,
	nextVenues map[string]*model.Venue,
) {
	for ti := range result.Trips {
		trip := &result.Trips[ti]
		for si := range trip.Stops {
			stop := &trip.Stops[si]
			disp := DetermineDisposition(stop, week, data, nextGames, nextVenues)

			stop.RequiresHubRet = disp.Disposition == DispositionReturn
			stop.HubReturnReason = disp.Reason
			stop.NextVenueID = disp.NextVenueID
			stop.NextVenueName = disp.NextVenueName

			if disp.Disposition == DispositionReroute {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"%s: Reroute assets to %s for next week",
					stop.VenueName, disp.NextVenueName))
			}
		}
	}
}

func stopLocation(stop *model.TripStop, data *model.WeekData) (geo.Coordinate, bool) {
	v, ok := data.Venues[stop.VenueID]
	if !ok {
		return geo.Coordinate{}, false
	}
	return v.Location()
}

package solver

import (
	"fmt"
	"log"
	"strings"

	"github.com/dragonseats/optimizer/internal/model"
)

// cascadeAttempt is one progressive relaxation of the inputs.
type cascadeAttempt struct {
	step   int
	action string
	detail string
	apply  func(cons *Constraints, clusters []VenueCluster) (*Constraints, []VenueCluster)
}

// HandleInfeasibility runs the relaxation cascade over an initial
// result that left demands uncovered.
//
// Four re-planning attempts run in order, each strictly looser than
// the last; the best result by unassigned count wins, and the cascade
// stops early if an attempt covers everything. Step 5 rewrites the
// survivors' reasons with a diagnosis, and step 6 marks the run
// partial when demands remain.
func (p *Planner) HandleInfeasibility(
	data *model.WeekData,
	m *Matrix,
	cons *Constraints,
	clusters []VenueCluster,
	initial *model.OptimizationResult,
) *model.OptimizationResult {
	if !initial.HasUnassigned() {
		return initial
	}

	best := initial
	attempts := cascadeAttempts()

	for _, attempt := range attempts {
		relaxedCons, relaxedClusters := attempt.apply(cons, clusters)

		candidate := p.OptimizeWeek(data, m, relaxedCons, relaxedClusters, nil)
		candidate.ConstraintRelaxations = append(candidate.ConstraintRelaxations,
			model.RelaxationEntry{Step: attempt.step, Action: attempt.action, Detail: attempt.detail})
		if attempt.step == 2 {
			candidate.Warnings = append(candidate.Warnings,
				"Some assets may need rebranding before deployment")
		}

		log.Printf("[cascade] step %d (%s): %d unassigned",
			attempt.step, attempt.action, len(candidate.UnassignedDemands))

		if len(candidate.UnassignedDemands) < len(best.UnassignedDemands) {
			best = candidate
		}
		if !best.HasUnassigned() {
			return best
		}
	}

	diagnoseUnassigned(data, best)

	if best.HasUnassigned() {
		best.Status = model.RunPartial
		best.ConstraintRelaxations = append(best.ConstraintRelaxations, model.RelaxationEntry{
			Step:   6,
			Action: "partial_solution",
			Detail: fmt.Sprintf("%d demands could not be fulfilled", len(best.UnassignedDemands)),
		})
	}
	return best
}

func cascadeAttempts() []cascadeAttempt {
	relaxWeights := func(c *Constraints) *Constraints {
		out := *c
		out.Weights = SoftWeights{Miles: 0.1, Vehicles: 0.1, ClosestHub: 0.1, Rebranding: 0.1, Compactness: 0.1}
		return &out
	}
	relaxBranding := func(c *Constraints) *Constraints {
		out := relaxWeights(c)
		out.BlockedAssetIDs = make(map[string]bool)
		out.Weights.Rebranding = 0
		return out
	}
	relaxHub := func(c *Constraints) *Constraints {
		out := relaxBranding(c)
		out.Weights.ClosestHub = 0
		return out
	}

	return []cascadeAttempt{
		{
			step: 1, action: "relaxed_soft_constraints",
			detail: "Allowed more miles, more vehicles, relaxed hub preference",
			apply: func(c *Constraints, cl []VenueCluster) (*Constraints, []VenueCluster) {
				return relaxWeights(c), cl
			},
		},
		{
			step: 2, action: "relaxed_branding",
			detail: "Allowed unbranded or mismatched branding assets",
			apply: func(c *Constraints, cl []VenueCluster) (*Constraints, []VenueCluster) {
				return relaxBranding(c), cl
			},
		},
		{
			step: 3, action: "split_multi_stop",
			detail: "Split multi-stop trips into individual routes",
			apply: func(c *Constraints, cl []VenueCluster) (*Constraints, []VenueCluster) {
				return relaxBranding(c), SplitClusters(cl)
			},
		},
		{
			step: 4, action: "cross_hub_assignments",
			detail: "Allowed vehicles from distant hubs to cover nearby games",
			apply: func(c *Constraints, cl []VenueCluster) (*Constraints, []VenueCluster) {
				return relaxHub(c), SplitClusters(cl)
			},
		},
	}
}

// diagnoseUnassigned replaces generic reasons on the remaining
// unassigned demands with a resource-level diagnosis. Reasons already
// naming an availability count are left alone.
func diagnoseUnassigned(data *model.WeekData, result *model.OptimizationResult) {
	for i := range result.UnassignedDemands {
		u := &result.UnassignedDemands[i]
		if strings.Contains(u.Reason, "available") {
			continue
		}
		u.Reason = classifyShortage(data, u.AssetType)
	}
}

func classifyShortage(data *model.WeekData, assetType string) string {
	anyInService := false
	anyAtHub := false
	for i := range data.Assets {
		a := &data.Assets[i]
		if a.AssetType != assetType || !a.InService() {
			continue
		}
		anyInService = true
		if a.Status == model.StatusAtHub {
			anyAtHub = true
			break
		}
	}

	switch {
	case !anyInService:
		return "Asset type/model not available in inventory"
	case !anyAtHub:
		return fmt.Sprintf("All %s assets are deployed — none at hub", assetType)
	case len(data.Vehicles) == 0:
		return reasonNoVehicle
	case !anyDriverCapable(data):
		return "No personnel available at nearest hub"
	default:
		return "Insufficient resources to cover all demands this week"
	}
}

func anyDriverCapable(data *model.WeekData) bool {
	for _, p := range data.Personnel {
		if p.Role == model.RoleDriver || p.Role == model.RoleLeadTech {
			return true
		}
	}
	return false
}

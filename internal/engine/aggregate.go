// Policy effect aggregation — reduces per-demographic reactions into one
// global state delta and per-demographic sentiment updates.
package engine

import (
	"math"

	"github.com/talgya/townhall/internal/game"
)

// supportBlendFactor controls how strongly a single turn's support
// likelihood pulls current support. A full overwrite causes single-turn
// whiplash; 0.3 moves support a third of the way each turn.
const supportBlendFactor = 0.3

// Delta is the aggregate effect of one policy evaluation on global state.
// Budget is not part of the delta: it comes from the policy's declared
// effects, never from sentiment.
type Delta struct {
	Approval float64 `json:"approval"`
	Economic float64 `json:"economic"`
}

// Aggregate folds reactions into a global delta and updated demographic
// copies. Pure: identical inputs yield identical outputs, and neither
// input map is mutated.
//
// Per demographic: happiness shifts by the reaction's happiness change,
// support blends toward the reaction's support likelihood, and the
// explanation is stored as the last policy reaction. Globally, approval
// and economic deltas are population-weighted sums (a zero-population
// demographic still updates itself but contributes no weight).
func Aggregate(reactions map[string]game.Reaction, demographics map[string]*game.Demographic) (Delta, map[string]*game.Demographic) {
	updated := make(map[string]*game.Demographic, len(demographics))

	var approvalDelta, economicDelta float64
	for id, demo := range demographics {
		cp := demo.Clone()
		updated[id] = cp

		reaction, ok := reactions[id]
		if !ok {
			continue
		}

		cp.Happiness = game.Clamp(cp.Happiness+reaction.HappinessChange, 0, 100)
		cp.SupportLevel = game.Clamp(
			cp.SupportLevel+(reaction.SupportLikelihood-cp.SupportLevel)*supportBlendFactor,
			0, 100,
		)
		cp.LastPolicyReaction = reaction.Explanation

		weight := demo.PopulationPercentage / 100
		approvalDelta += weight * reaction.HappinessChange
		economicDelta += weight * reaction.EconomicImpact
	}

	return Delta{
		Approval: roundDelta(approvalDelta),
		Economic: roundDelta(economicDelta),
	}, updated
}

// roundDelta rounds to two decimals so small constituencies still register
// without accumulating float noise across turns.
func roundDelta(v float64) float64 {
	return math.Round(v*100) / 100
}

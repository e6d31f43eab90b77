package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	state := NewGameState(map[string]*Demographic{
		"youth": {
			ID:                   "youth",
			Happiness:            65,
			SupportLevel:         55,
			PopulationPercentage: 25,
			Concerns:             []string{"employment", "housing costs"},
		},
	})
	state.PolicyHistory = append(state.PolicyHistory, Policy{ID: "p1", Status: StatusEnacted})

	cp := state.Clone()
	cp.Budget = 0
	cp.Demographics["youth"].Happiness = 1
	cp.Demographics["youth"].Concerns[0] = "changed"
	cp.PolicyHistory = append(cp.PolicyHistory, Policy{ID: "p2"})

	assert.Equal(t, int64(1_000_000), state.Budget)
	assert.Equal(t, float64(65), state.Demographics["youth"].Happiness)
	assert.Equal(t, "employment", state.Demographics["youth"].Concerns[0])
	assert.Len(t, state.PolicyHistory, 1)
}

func TestNewGameStateDefaults(t *testing.T) {
	state := NewGameState(map[string]*Demographic{})

	require.NotNil(t, state)
	assert.Equal(t, 1, state.TurnNumber)
	assert.Equal(t, int64(1_000_000), state.Budget)
	assert.Equal(t, float64(60), state.ApprovalRating)
	assert.Equal(t, float64(70), state.EconomicHealth)
	assert.Empty(t, state.ActiveEvents)
	assert.Empty(t, state.PolicyHistory)
}

func TestNeutralReaction(t *testing.T) {
	r := NeutralReaction()

	assert.Equal(t, float64(0), r.HappinessChange)
	assert.Equal(t, float64(0), r.EconomicImpact)
	assert.Equal(t, float64(50), r.SupportLikelihood)
	assert.Equal(t, "Unable to evaluate policy at this time.", r.Explanation)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi float64
		want      float64
	}{
		{"in range", 50, 0, 100, 50},
		{"below", -20, 0, 100, 0},
		{"above", 130, 0, 100, 100},
		{"at lower bound", 0, 0, 100, 0},
		{"at upper bound", 100, 0, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.v, tt.lo, tt.hi))
		})
	}
}

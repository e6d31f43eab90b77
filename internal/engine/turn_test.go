package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/townhall/internal/game"
)

// scriptedSource returns a fixed reaction per demographic id and counts
// calls.
type scriptedSource struct {
	mu        sync.Mutex
	reactions map[string]game.Reaction
	calls     int
}

func (s *scriptedSource) Evaluate(_ context.Context, demo *game.Demographic, _ string) game.Reaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if r, ok := s.reactions[demo.ID]; ok {
		return r
	}
	return game.NeutralReaction()
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func startingState() *game.GameState {
	state := game.NewGameState(map[string]*game.Demographic{
		"youth":    demoFixture("youth", 60, 65, 55),
		"business": demoFixture("business", 40, 70, 60),
	})
	return state
}

func TestAdvanceTurnRejectsMalformedProposalBeforeAnyBackendCall(t *testing.T) {
	tests := []struct {
		name     string
		proposal Proposal
		field    string
	}{
		{"empty title", Proposal{Title: "", Description: "d"}, "title"},
		{"blank title", Proposal{Title: "   ", Description: "d"}, "title"},
		{"oversized title", Proposal{Title: strings.Repeat("t", 201), Description: "d"}, "title"},
		{"empty description", Proposal{Title: "t", Description: ""}, "description"},
		{"oversized description", Proposal{Title: "t", Description: strings.Repeat("d", 2001)}, "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &scriptedSource{}
			eng := New(source)

			result, err := eng.AdvanceTurn(context.Background(), startingState(), tt.proposal)

			require.Error(t, err)
			var pErr *ProposalError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.field, pErr.Field)
			assert.Nil(t, result)
			assert.Equal(t, 0, source.callCount(), "no backend call may be made")
		})
	}
}

func TestAdvanceTurnEndToEnd(t *testing.T) {
	source := &scriptedSource{reactions: map[string]game.Reaction{
		"youth":    {HappinessChange: 15, EconomicImpact: 5, SupportLikelihood: 70, Explanation: "Free Wi-Fi!"},
		"business": {HappinessChange: -5, EconomicImpact: 10, SupportLikelihood: 55, Explanation: "Who pays for it?"},
	}}
	eng := New(source)
	state := startingState()

	result, err := eng.AdvanceTurn(context.Background(), state, Proposal{
		Title:       "Expand Wi-Fi",
		Description: "Free municipal wireless downtown.",
	})
	require.NoError(t, err)

	next := result.NewState
	assert.Equal(t, 2, next.TurnNumber)
	// Approval: 60 + (0.6*15 + 0.4*(-5)) = 67.
	assert.InDelta(t, 67, next.ApprovalRating, 0.001)
	// Economy: 70 + (0.6*5 + 0.4*10) = 77.
	assert.InDelta(t, 77, next.EconomicHealth, 0.001)
	assert.Equal(t, int64(1_000_000), next.Budget)

	require.Len(t, next.PolicyHistory, 1)
	policy := next.PolicyHistory[0]
	assert.Equal(t, game.StatusEnacted, policy.Status)
	assert.Equal(t, "Expand Wi-Fi", policy.Title)
	assert.NotEmpty(t, policy.ID)
	require.NotNil(t, policy.EnactedAt)

	require.Len(t, result.Reactions, 2)
	assert.Equal(t, "Free Wi-Fi!", next.Demographics["youth"].LastPolicyReaction)
	assert.Equal(t, 2, source.callCount())

	// Input state untouched: the transition is a replacement, not an edit.
	assert.Equal(t, 1, state.TurnNumber)
	assert.Equal(t, float64(60), state.ApprovalRating)
	assert.Empty(t, state.PolicyHistory)
}

func TestAdvanceTurnNoOpReactions(t *testing.T) {
	source := &scriptedSource{reactions: map[string]game.Reaction{
		"youth":    {SupportLikelihood: 55},
		"business": {SupportLikelihood: 60},
	}}
	eng := New(source)
	state := startingState()

	result, err := eng.AdvanceTurn(context.Background(), state, Proposal{
		Title:       "Proclaim Town Bird",
		Description: "The heron.",
		Effects:     map[string]float64{"budget": -500},
	})
	require.NoError(t, err)

	next := result.NewState
	assert.Equal(t, 2, next.TurnNumber)
	assert.Equal(t, state.ApprovalRating, next.ApprovalRating)
	assert.Equal(t, state.EconomicHealth, next.EconomicHealth)
	// Only the declared budget effect moves the budget.
	assert.Equal(t, state.Budget-500, next.Budget)
	// Support likelihood equal to current support leaves support in place.
	assert.Equal(t, float64(55), next.Demographics["youth"].SupportLevel)
}

func TestAdvanceTurnAllBackendFailuresStillCompleteTheTurn(t *testing.T) {
	// An empty script means every demographic gets the neutral fallback.
	source := &scriptedSource{}
	eng := New(source)

	result, err := eng.AdvanceTurn(context.Background(), startingState(), Proposal{
		Title:       "Anything",
		Description: "The backend is down.",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.NewState.TurnNumber)
	assert.Equal(t, float64(60), result.NewState.ApprovalRating)
	for id, r := range result.Reactions {
		assert.Equal(t, game.NeutralReaction(), r, "demographic %s", id)
	}
}

func TestAdvanceTurnCancelledContextAppliesNothing(t *testing.T) {
	source := &scriptedSource{reactions: map[string]game.Reaction{
		"youth": {HappinessChange: 20, SupportLikelihood: 90},
	}}
	eng := New(source)
	state := startingState()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := eng.AdvanceTurn(ctx, state, Proposal{Title: "t", Description: "d"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, state.TurnNumber)
	assert.Equal(t, float64(60), state.ApprovalRating)
}

func TestAdvanceTurnRunsEventDeck(t *testing.T) {
	source := &scriptedSource{}
	eng := New(source)
	eng.Events = &EventDeck{} // empty catalog: must be a no-op, not a panic

	result, err := eng.AdvanceTurn(context.Background(), startingState(), Proposal{
		Title:       "t",
		Description: "d",
	})
	require.NoError(t, err)
	assert.Empty(t, result.NewState.ActiveEvents)
}

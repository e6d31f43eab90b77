// Turn advancement — the single state transition of the game. A proposal
// fans out to every demographic concurrently, reactions are aggregated,
// and the result is applied as one atomic state replacement.
package engine

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/townhall/internal/game"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
)

// ReactionSource produces one demographic's judgment of a policy. Every
// call resolves to a well-formed reaction (valid or neutral fallback);
// implementations never block past their own timeout.
type ReactionSource interface {
	Evaluate(ctx context.Context, demo *game.Demographic, policyText string) game.Reaction
}

// Proposal is a player-submitted policy before validation. Effects carries
// caller-declared deltas; the engine reads only the "budget" key.
type Proposal struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Effects     map[string]float64 `json:"effects,omitempty"`
}

// Validate checks the structural preconditions on a proposal. It runs
// before any backend call; a failure means the turn never starts.
func (p Proposal) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return &ProposalError{Field: "title", Reason: "must not be empty"}
	case utf8.RuneCountInString(p.Title) > maxTitleLen:
		return &ProposalError{Field: "title", Reason: "exceeds 200 characters"}
	case strings.TrimSpace(p.Description) == "":
		return &ProposalError{Field: "description", Reason: "must not be empty"}
	case utf8.RuneCountInString(p.Description) > maxDescriptionLen:
		return &ProposalError{Field: "description", Reason: "exceeds 2000 characters"}
	}
	return nil
}

// TurnResult is what one completed turn hands back to the caller.
type TurnResult struct {
	NewState  *game.GameState          `json:"gameState"`
	Reactions map[string]game.Reaction `json:"demographicResponses"`
	Policy    game.Policy              `json:"policy"`
}

// Engine owns turn transitions. It is stateless with respect to any
// particular save; per-save write serialization is the caller's concern.
type Engine struct {
	Reactions ReactionSource
	Events    *EventDeck // optional; nil disables town events
}

// New creates an engine around a reaction source.
func New(source ReactionSource) *Engine {
	return &Engine{Reactions: source}
}

// AdvanceTurn runs one full turn against state and returns the new state
// without mutating the input. Backend failures degrade to neutral
// reactions per demographic; the only errors returned are a structurally
// invalid proposal or caller cancellation, and in both cases no state
// transition takes place.
func (e *Engine) AdvanceTurn(ctx context.Context, state *game.GameState, proposal Proposal) (*TurnResult, error) {
	if err := proposal.Validate(); err != nil {
		return nil, err
	}

	policyText := proposal.Title + ": " + proposal.Description
	reactions := e.fanOut(ctx, state, policyText)

	// A caller abort mid-fan-out must never apply a partial delta.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	delta, updated := Aggregate(reactions, state.Demographics)

	now := time.Now().UTC()
	policy := game.Policy{
		ID:          uuid.NewString(),
		Title:       proposal.Title,
		Description: proposal.Description,
		ProposedAt:  now,
		EnactedAt:   &now,
		Status:      game.StatusEnacted,
		Effects:     proposal.Effects,
	}

	next := state.Clone()
	next.Demographics = updated
	next.ApprovalRating = game.Clamp(next.ApprovalRating+delta.Approval, 0, 100)
	next.EconomicHealth = game.Clamp(next.EconomicHealth+delta.Economic, 0, 100)
	next.Budget += int64(math.Round(proposal.Effects["budget"]))
	next.PolicyHistory = append(next.PolicyHistory, policy)
	next.TurnNumber++

	if e.Events != nil {
		e.Events.Process(next)
	}

	return &TurnResult{
		NewState:  next,
		Reactions: reactions,
		Policy:    policy,
	}, nil
}

// fanOut evaluates the policy once per demographic, concurrently. The
// calls are independent and read-only with respect to game state; a slow
// or failed evaluation resolves to its own fallback without stalling the
// others. Returns once all demographics have a reaction.
func (e *Engine) fanOut(ctx context.Context, state *game.GameState, policyText string) map[string]game.Reaction {
	reactions := make(map[string]game.Reaction, len(state.Demographics))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for id, demo := range state.Demographics {
		id, demo := id, demo
		g.Go(func() error {
			r := e.Reactions.Evaluate(gctx, demo.Clone(), policyText)
			mu.Lock()
			reactions[id] = r
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // evaluations never error; Wait is a pure join

	return reactions
}

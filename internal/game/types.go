// Package game defines the core data model for the town political
// simulation: the game state aggregate, demographics, policies, reactions,
// and town events.
package game

import "time"

// Demographic is a named constituency with its own sentiment state and a
// behavioral persona used to condition policy evaluation.
type Demographic struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Happiness            float64  `json:"happiness"`            // 0-100
	SupportLevel         float64  `json:"supportLevel"`         // 0-100
	PopulationPercentage float64  `json:"populationPercentage"` // 0-100
	Concerns             []string `json:"concerns"`
	Persona              string   `json:"persona"`
	LastPolicyReaction   string   `json:"lastPolicyReaction,omitempty"`
}

// Clone returns an independent copy of the demographic.
func (d *Demographic) Clone() *Demographic {
	cp := *d
	cp.Concerns = append([]string(nil), d.Concerns...)
	return &cp
}

// PolicyStatus tracks a policy through its lifecycle. Once a policy leaves
// StatusProposed it is immutable. StatusRejected is reserved for future
// veto logic; the engine itself never produces it.
type PolicyStatus string

const (
	StatusProposed PolicyStatus = "proposed"
	StatusEnacted  PolicyStatus = "enacted"
	StatusRejected PolicyStatus = "rejected"
)

// Policy is a player-submitted proposal with its declared effects.
// Effects are caller-declared numeric deltas keyed by tag ("budget" is the
// only key the engine reads); approval and economic effects are derived
// from demographic reactions instead.
type Policy struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ProposedAt  time.Time          `json:"proposedAt"`
	EnactedAt   *time.Time         `json:"enactedAt,omitempty"`
	Status      PolicyStatus       `json:"status"`
	Effects     map[string]float64 `json:"effects"`
}

// Reaction is the structured, bounded judgment one demographic renders on
// one policy proposal. Transient: consumed by aggregation and reduced to
// the demographic's LastPolicyReaction text.
type Reaction struct {
	HappinessChange   float64 `json:"happiness_change"`   // -50..50
	EconomicImpact    float64 `json:"economic_impact"`    // -25..25
	SupportLikelihood float64 `json:"support_likelihood"` // 0..100
	Explanation       string  `json:"explanation"`        // ≤200 chars
}

// NeutralReaction is the fixed fallback substituted whenever a generated
// reaction cannot be trusted.
func NeutralReaction() Reaction {
	return Reaction{
		HappinessChange:   0,
		EconomicImpact:    0,
		SupportLikelihood: 50,
		Explanation:       "Unable to evaluate policy at this time.",
	}
}

// EventType categorizes town events.
type EventType string

const (
	EventEconomic      EventType = "economic"
	EventSocial        EventType = "social"
	EventEnvironmental EventType = "environmental"
	EventPolitical     EventType = "political"
)

// Event is a town occurrence that applies its effects each turn it is
// active and expires after Duration turns.
type Event struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Type        EventType          `json:"type"`
	Probability float64            `json:"probability"` // 0..1 base trigger chance
	Effects     map[string]float64 `json:"effects"`     // "budget", "approval", "economy"
	Duration    int                `json:"duration"`    // turns
	StartTurn   int                `json:"startTurn"`
}

// GameState is the root aggregate for one save. It is mutated only through
// whole-turn transitions; readers never observe a torn state.
type GameState struct {
	TurnNumber     int                     `json:"turnNumber"`
	Budget         int64                   `json:"budget"` // signed currency units
	ApprovalRating float64                 `json:"approvalRating"` // 0-100
	EconomicHealth float64                 `json:"economicHealth"` // 0-100
	Demographics   map[string]*Demographic `json:"demographics"`
	ActiveEvents   []Event                 `json:"activeEvents"`
	PolicyHistory  []Policy                `json:"policyHistory"`
}

// NewGameState builds the starting state for a fresh game from seeded
// demographics.
func NewGameState(demographics map[string]*Demographic) *GameState {
	return &GameState{
		TurnNumber:     1,
		Budget:         1_000_000,
		ApprovalRating: 60,
		EconomicHealth: 70,
		Demographics:   demographics,
		ActiveEvents:   []Event{},
		PolicyHistory:  []Policy{},
	}
}

// Clone returns a deep copy of the state. Turn transitions work on a clone
// so a failed or cancelled turn leaves the original untouched.
func (s *GameState) Clone() *GameState {
	cp := *s
	cp.Demographics = make(map[string]*Demographic, len(s.Demographics))
	for id, d := range s.Demographics {
		cp.Demographics[id] = d.Clone()
	}
	cp.ActiveEvents = append([]Event(nil), s.ActiveEvents...)
	cp.PolicyHistory = append([]Policy(nil), s.PolicyHistory...)
	return &cp
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

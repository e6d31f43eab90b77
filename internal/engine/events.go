// Town events — random occurrences that pressure the budget, approval,
// and economy independent of player policy. Trigger chances drift with a
// smooth civic-climate curve so event-heavy and quiet stretches alternate
// instead of being pure coin flips.
package engine

import (
	"encoding/binary"
	"hash/fnv"
	"log/slog"
	"math"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/townhall/internal/game"
)

// climateScale stretches the noise curve across turns; smaller values make
// the civic climate shift more slowly.
const climateScale = 0.35

// EventDeck rolls and applies town events each turn. It holds no mutable
// state: rolls derive from (seed, turn, event name), so one deck is safe
// to share across saves and a given seed always produces the same event
// timeline for a given turn sequence.
type EventDeck struct {
	catalog []game.Event
	climate opensimplex.Noise
	seed    int64
}

// NewEventDeck creates a deck over the built-in catalog.
func NewEventDeck(seed int64) *EventDeck {
	return &EventDeck{
		catalog: townEvents,
		climate: opensimplex.NewNormalized(seed),
		seed:    seed,
	}
}

// Climate returns the civic-climate multiplier for a turn, in [0.5, 1.5].
// Values above 1 make the town eventful, below 1 calm.
func (d *EventDeck) Climate(turn int) float64 {
	if d.climate == nil {
		return 1
	}
	return 0.5 + d.climate.Eval2(float64(turn)*climateScale, 0)
}

// Process applies active events to the state, expires finished ones, and
// rolls the catalog for new triggers. Mutates state in place; callers pass
// the already-cloned next state of a turn transition.
func (d *EventDeck) Process(state *game.GameState) {
	turn := state.TurnNumber

	// Apply effects of events active this turn, then drop the expired.
	remaining := state.ActiveEvents[:0]
	for _, ev := range state.ActiveEvents {
		applyEventEffects(state, ev)
		if turn-ev.StartTurn < ev.Duration {
			remaining = append(remaining, ev)
		} else {
			slog.Info("town event ended", "event", ev.Name, "turn", turn)
		}
	}
	state.ActiveEvents = remaining

	// Roll for new events.
	mult := d.Climate(turn)
	for _, candidate := range d.catalog {
		if hasActiveEvent(state, candidate.Name) {
			continue
		}
		chance := math.Min(candidate.Probability*mult, 1)
		if d.roll(turn, candidate.Name) >= chance {
			continue
		}
		ev := candidate
		ev.ID = uuid.NewString()
		ev.StartTurn = turn
		state.ActiveEvents = append(state.ActiveEvents, ev)
		slog.Info("town event triggered",
			"event", ev.Name, "type", ev.Type, "turn", turn, "duration", ev.Duration)
	}
}

// roll returns a uniform value in [0, 1) fixed by (seed, turn, name).
// Keeping the roll stateless means concurrent turns on different saves
// never contend, and replaying a save from the same seed replays its
// events.
func (d *EventDeck) roll(turn int, name string) float64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(d.seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(turn))
	h.Write(buf[:])
	h.Write([]byte(name))
	// Top 53 bits give a full-precision float in [0, 1).
	return float64(h.Sum64()>>11) / (1 << 53)
}

func hasActiveEvent(state *game.GameState, name string) bool {
	for _, ev := range state.ActiveEvents {
		if ev.Name == name {
			return true
		}
	}
	return false
}

// applyEventEffects folds an event's declared deltas into global state.
// Recognized keys: budget, approval, economy.
func applyEventEffects(state *game.GameState, ev game.Event) {
	for key, delta := range ev.Effects {
		switch key {
		case "budget":
			state.Budget += int64(math.Round(delta))
		case "approval":
			state.ApprovalRating = game.Clamp(state.ApprovalRating+delta, 0, 100)
		case "economy":
			state.EconomicHealth = game.Clamp(state.EconomicHealth+delta, 0, 100)
		}
	}
}

// townEvents is the built-in catalog. Probabilities are per-turn base
// chances before climate modulation.
var townEvents = []game.Event{
	{
		Name:        "Factory Layoffs",
		Description: "The town's largest employer announces a round of layoffs.",
		Type:        game.EventEconomic,
		Probability: 0.05,
		Effects:     map[string]float64{"economy": -4, "approval": -2},
		Duration:    3,
	},
	{
		Name:        "Summer Street Festival",
		Description: "Volunteers organize a street festival downtown.",
		Type:        game.EventSocial,
		Probability: 0.08,
		Effects:     map[string]float64{"approval": 2, "budget": -5_000},
		Duration:    1,
	},
	{
		Name:        "River Flooding",
		Description: "Heavy rains flood low-lying neighborhoods.",
		Type:        game.EventEnvironmental,
		Probability: 0.04,
		Effects:     map[string]float64{"budget": -50_000, "approval": -3},
		Duration:    2,
	},
	{
		Name:        "County Grant Awarded",
		Description: "The county awards the town an infrastructure grant.",
		Type:        game.EventPolitical,
		Probability: 0.05,
		Effects:     map[string]float64{"budget": 75_000, "approval": 1},
		Duration:    1,
	},
	{
		Name:        "New Business Opening",
		Description: "A regional retailer opens a storefront on Main Street.",
		Type:        game.EventEconomic,
		Probability: 0.07,
		Effects:     map[string]float64{"economy": 3},
		Duration:    2,
	},
}

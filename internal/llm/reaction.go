// Demographic policy evaluation — each constituency judges a proposal
// through the generative backend. The raw response is untrusted: it is
// extracted, bounds-checked, and replaced with a neutral fallback on any
// failure, so callers always receive a well-formed reaction.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/talgya/townhall/internal/game"
)

const (
	reactionMaxTokens  = 500
	maxExplanationLen  = 200
	defaultEvalTimeout = 30 * time.Second
)

// completer is the slice of Client the evaluator needs; tests substitute
// deterministic implementations.
type completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
	Enabled() bool
}

// Evaluator turns (demographic, policy) pairs into validated reactions.
type Evaluator struct {
	backend completer
	timeout time.Duration
}

// NewEvaluator wraps a client. A nil client is allowed: every evaluation
// then resolves to the neutral fallback.
func NewEvaluator(client *Client, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = defaultEvalTimeout
	}
	return &Evaluator{backend: client, timeout: timeout}
}

// Evaluate asks the backend how one demographic reacts to a policy.
// It never fails: backend unavailability, timeouts, malformed output, and
// out-of-range values all degrade to the neutral fallback reaction.
func (e *Evaluator) Evaluate(ctx context.Context, demo *game.Demographic, policyText string) game.Reaction {
	if e.backend == nil || !e.backend.Enabled() {
		return game.NeutralReaction()
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildReactionPrompt(demo, policyText)
	raw, err := e.backend.Complete(ctx, "", prompt, reactionMaxTokens)
	if err != nil {
		slog.Warn("policy evaluation failed, using neutral reaction",
			"demographic", demo.ID, "error", err)
		return game.NeutralReaction()
	}

	reaction, err := ParseReaction(raw)
	if err != nil {
		slog.Warn("policy evaluation unparseable, using neutral reaction",
			"demographic", demo.ID, "error", err)
		return game.NeutralReaction()
	}

	slog.Debug("demographic reaction",
		"demographic", demo.ID,
		"happiness_change", reaction.HappinessChange,
		"support_likelihood", reaction.SupportLikelihood,
	)
	return reaction
}

func buildReactionPrompt(demo *game.Demographic, policyText string) string {
	concerns := "None"
	if len(demo.Concerns) > 0 {
		concerns = strings.Join(demo.Concerns, ", ")
	}

	return fmt.Sprintf(`You are representing the %s demographic in a local town political simulation.

PERSONA: %s

CURRENT STATE:
- Happiness: %.0f/100
- Recent concerns: %s
- Support level: %.0f/100

POLICY PROPOSAL: "%s"

Evaluate this policy proposal and respond with ONLY a JSON object in this exact format:
{
  "happiness_change": <number between -50 and 50>,
  "economic_impact": <number between -25 and 25>,
  "support_likelihood": <number between 0 and 100>,
  "explanation": "<brief explanation in under 200 characters>"
}

Consider how this policy would realistically affect your demographic. Be consistent with your persona and current state.`,
		demo.Name, demo.Persona, demo.Happiness, concerns, demo.SupportLevel, policyText)
}

// reactionPayload mirrors the backend contract; pointer fields distinguish
// missing keys from zero values.
type reactionPayload struct {
	HappinessChange   *float64 `json:"happiness_change"`
	EconomicImpact    *float64 `json:"economic_impact"`
	SupportLikelihood *float64 `json:"support_likelihood"`
	Explanation       *string  `json:"explanation"`
}

// ParseReaction extracts and validates a reaction from raw backend text.
// Extraction takes the first balanced {...} substring; if none exists the
// trimmed whole text is parsed. Validation enforces the numeric bounds and
// explanation length of the contract.
func ParseReaction(raw string) (game.Reaction, error) {
	jsonText := extractObject(raw)
	if jsonText == "" {
		jsonText = strings.TrimSpace(raw)
	}

	var p reactionPayload
	if err := json.Unmarshal([]byte(jsonText), &p); err != nil {
		return game.Reaction{}, fmt.Errorf("invalid JSON in response: %w", err)
	}
	return validatePayload(p)
}

func validatePayload(p reactionPayload) (game.Reaction, error) {
	switch {
	case p.HappinessChange == nil:
		return game.Reaction{}, fmt.Errorf("missing happiness_change")
	case p.EconomicImpact == nil:
		return game.Reaction{}, fmt.Errorf("missing economic_impact")
	case p.SupportLikelihood == nil:
		return game.Reaction{}, fmt.Errorf("missing support_likelihood")
	case p.Explanation == nil:
		return game.Reaction{}, fmt.Errorf("missing explanation")
	}

	if *p.HappinessChange < -50 || *p.HappinessChange > 50 {
		return game.Reaction{}, fmt.Errorf("happiness_change %v out of range [-50,50]", *p.HappinessChange)
	}
	if *p.EconomicImpact < -25 || *p.EconomicImpact > 25 {
		return game.Reaction{}, fmt.Errorf("economic_impact %v out of range [-25,25]", *p.EconomicImpact)
	}
	if *p.SupportLikelihood < 0 || *p.SupportLikelihood > 100 {
		return game.Reaction{}, fmt.Errorf("support_likelihood %v out of range [0,100]", *p.SupportLikelihood)
	}
	if utf8.RuneCountInString(*p.Explanation) > maxExplanationLen {
		return game.Reaction{}, fmt.Errorf("explanation exceeds %d characters", maxExplanationLen)
	}

	return game.Reaction{
		HappinessChange:   *p.HappinessChange,
		EconomicImpact:    *p.EconomicImpact,
		SupportLikelihood: *p.SupportLikelihood,
		Explanation:       *p.Explanation,
	}, nil
}

// extractObject returns the first balanced top-level {...} substring of s,
// skipping braces inside JSON string literals. Empty if none is found.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

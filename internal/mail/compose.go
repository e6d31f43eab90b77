// Package mail composes the town-hall inbox messages the player receives:
// a welcome briefing on taking office and one reaction letter per
// demographic after each enacted policy.
package mail

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/townhall/internal/game"
)

// Email kinds.
const (
	KindIssue        = "issue"
	KindResult       = "result"
	KindEvent        = "event"
	KindNotification = "notification"
)

// Email is one inbox message for a save.
type Email struct {
	ID               string    `json:"id"`
	From             string    `json:"from"`
	FromName         string    `json:"fromName"`
	To               string    `json:"to"`
	Subject          string    `json:"subject"`
	Body             string    `json:"body"`
	Timestamp        time.Time `json:"timestamp"`
	Kind             string    `json:"type"`
	RequiresResponse bool      `json:"requiresResponse"`
	Read             bool      `json:"read"`
	Archived         bool      `json:"archived"`
}

// Welcome composes the briefing sent when a new game is created.
func Welcome(state *game.GameState) Email {
	engaged := 0.0
	for _, d := range state.Demographics {
		engaged += d.PopulationPercentage
	}

	body := fmt.Sprintf(`Congratulations on your election! As the new town administrator, you'll be making important decisions that affect our community of %.0f%% of engaged citizens.

Your starting situation:
- Budget: $%s
- Overall Approval: %.0f%%
- Economic Health: %.0f%%

The town is counting on you to make wise decisions. You'll receive emails about various issues that need your attention. Good luck!

- Mayor Johnson`,
		engaged,
		humanize.Comma(state.Budget),
		state.ApprovalRating,
		state.EconomicHealth,
	)

	return Email{
		ID:        uuid.NewString(),
		From:      "mayor@townhall.gov",
		FromName:  "Mayor Johnson",
		To:        "player@townhall.gov",
		Subject:   "Welcome to Office!",
		Body:      body,
		Timestamp: time.Now().UTC(),
		Kind:      KindNotification,
	}
}

// PolicyReactions composes one letter per demographic describing how it
// received an enacted policy. Letters are ordered by demographic id so
// inbox output is stable.
func PolicyReactions(policy game.Policy, reactions map[string]game.Reaction, demographics map[string]*game.Demographic) []Email {
	ids := make([]string, 0, len(reactions))
	for id := range reactions {
		if _, ok := demographics[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	emails := make([]Email, 0, len(ids))
	for _, id := range ids {
		demo := demographics[id]
		reaction := reactions[id]

		body := fmt.Sprintf(`Regarding "%s":

%s

Sentiment among %s is now %.0f/100, with support at %.0f/100.`,
			policy.Title,
			reaction.Explanation,
			demo.Name,
			demo.Happiness,
			demo.SupportLevel,
		)

		emails = append(emails, Email{
			ID:        uuid.NewString(),
			From:      fmt.Sprintf("%s@townhall.gov", id),
			FromName:  demo.Name,
			To:        "player@townhall.gov",
			Subject:   fmt.Sprintf("Re: %s", policy.Title),
			Body:      body,
			Timestamp: time.Now().UTC(),
			Kind:      KindResult,
		})
	}
	return emails
}

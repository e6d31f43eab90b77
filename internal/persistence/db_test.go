package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/townhall/internal/game"
	"github.com/talgya/townhall/internal/mail"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleState() *game.GameState {
	state := game.NewGameState(map[string]*game.Demographic{
		"youth": {
			ID:                   "youth",
			Name:                 "Young Adults",
			Happiness:            65,
			SupportLevel:         55,
			PopulationPercentage: 100,
			Concerns:             []string{"jobs", "housing"},
		},
	})
	state.PolicyHistory = []game.Policy{{
		ID:         "p1",
		Title:      "Bike Lanes",
		Status:     game.StatusEnacted,
		ProposedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Effects:    map[string]float64{"budget": -20_000},
	}}
	return state
}

func TestSaveRoundTrip(t *testing.T) {
	db := openTestDB(t)

	state := sampleState()
	id, err := db.CreateSave("alice", "campaign", state)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	loaded, err := db.LoadSave("alice", "campaign")
	require.NoError(t, err)
	assert.Equal(t, state.TurnNumber, loaded.TurnNumber)
	assert.Equal(t, state.Budget, loaded.Budget)
	require.Contains(t, loaded.Demographics, "youth")
	assert.Equal(t, []string{"jobs", "housing"}, loaded.Demographics["youth"].Concerns)
	require.Len(t, loaded.PolicyHistory, 1)
	assert.Equal(t, "Bike Lanes", loaded.PolicyHistory[0].Title)
}

func TestLoadSaveNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.LoadSave("alice", "missing")
	assert.ErrorIs(t, err, ErrSaveNotFound)
}

func TestCreateSaveReplacesSameKey(t *testing.T) {
	db := openTestDB(t)

	state := sampleState()
	_, err := db.CreateSave("alice", "campaign", state)
	require.NoError(t, err)

	state.TurnNumber = 9
	_, err = db.CreateSave("alice", "campaign", state)
	require.NoError(t, err)

	loaded, err := db.LoadSave("alice", "campaign")
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.TurnNumber)

	saves, err := db.ListSaves("alice")
	require.NoError(t, err)
	assert.Len(t, saves, 1)
}

func TestUpdateSave(t *testing.T) {
	db := openTestDB(t)

	state := sampleState()
	_, err := db.CreateSave("alice", "campaign", state)
	require.NoError(t, err)

	state.TurnNumber = 2
	state.Budget = 950_000
	require.NoError(t, db.UpdateSave("alice", "campaign", state))

	loaded, err := db.LoadSave("alice", "campaign")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.TurnNumber)
	assert.Equal(t, int64(950_000), loaded.Budget)

	err = db.UpdateSave("bob", "campaign", state)
	assert.ErrorIs(t, err, ErrSaveNotFound)
}

func TestListSavesScopedToPlayer(t *testing.T) {
	db := openTestDB(t)

	state := sampleState()
	_, err := db.CreateSave("alice", "campaign", state)
	require.NoError(t, err)
	_, err = db.CreateSave("alice", "sandbox", state)
	require.NoError(t, err)
	_, err = db.CreateSave("bob", "campaign", state)
	require.NoError(t, err)

	saves, err := db.ListSaves("alice")
	require.NoError(t, err)
	require.Len(t, saves, 2)
	for _, s := range saves {
		assert.Equal(t, 1, s.TurnNumber)
	}
}

func TestEmailsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	older := mail.Email{
		ID:        "e1",
		From:      "mayor@townhall.gov",
		FromName:  "Mayor Johnson",
		To:        "player@townhall.gov",
		Subject:   "Welcome to Office!",
		Body:      "Congratulations.",
		Timestamp: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Kind:      mail.KindNotification,
	}
	newer := mail.Email{
		ID:               "e2",
		From:             "youth@townhall.gov",
		FromName:         "Young Adults",
		To:               "player@townhall.gov",
		Subject:          "Re: Bike Lanes",
		Body:             "We like this.",
		Timestamp:        time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
		Kind:             mail.KindResult,
		RequiresResponse: true,
	}

	require.NoError(t, db.AddEmails("alice", "campaign", []mail.Email{older, newer}))

	emails, err := db.Emails("alice", "campaign", 0)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "e2", emails[0].ID, "newest first")
	assert.Equal(t, "e1", emails[1].ID)
	assert.True(t, emails[1].Timestamp.Equal(older.Timestamp))
	assert.Equal(t, newer.Subject, emails[0].Subject)
	assert.Equal(t, newer.Body, emails[0].Body)
	assert.Equal(t, mail.KindResult, emails[0].Kind)
	assert.True(t, emails[0].RequiresResponse)

	limited, err := db.Emails("alice", "campaign", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "e2", limited[0].ID)

	other, err := db.Emails("alice", "sandbox", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAddEmailsRejectsUnknownKind(t *testing.T) {
	db := openTestDB(t)

	err := db.AddEmails("alice", "campaign", []mail.Email{{
		ID:        "bad",
		Timestamp: time.Now().UTC(),
		Kind:      "spam",
	}})
	assert.Error(t, err)
}

func TestMarkEmailRead(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.AddEmails("alice", "campaign", []mail.Email{{
		ID:        "e1",
		Timestamp: time.Now().UTC(),
		Kind:      mail.KindIssue,
	}}))

	ok, err := db.MarkEmailRead("e1")
	require.NoError(t, err)
	assert.True(t, ok)

	emails, err := db.Emails("alice", "campaign", 0)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.True(t, emails[0].Read)

	ok, err = db.MarkEmailRead("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPing(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Ping())
}

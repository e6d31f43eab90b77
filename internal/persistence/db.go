// Package persistence provides SQLite-based game save storage. A save is
// keyed by (player, save name) and stores the whole game state as one
// opaque JSON blob, so a reader never observes a torn state.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/townhall/internal/game"
	"github.com/talgya/townhall/internal/mail"
)

// ErrSaveNotFound is returned when no save exists for (player, save name).
var ErrSaveNotFound = errors.New("game save not found")

// DB wraps a SQLite connection for game persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS game_saves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		player_name TEXT NOT NULL,
		save_name TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		game_state TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(player_name, save_name)
	);

	CREATE TABLE IF NOT EXISTS emails (
		id TEXT PRIMARY KEY,
		player_name TEXT NOT NULL,
		save_name TEXT NOT NULL,
		from_address TEXT NOT NULL,
		from_name TEXT NOT NULL,
		to_address TEXT NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('issue', 'result', 'event', 'notification')),
		requires_response INTEGER NOT NULL DEFAULT 0,
		read INTEGER NOT NULL DEFAULT 0,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_game_saves_player ON game_saves(player_name);
	CREATE INDEX IF NOT EXISTS idx_emails_save ON emails(player_name, save_name);
	CREATE INDEX IF NOT EXISTS idx_emails_unread ON emails(player_name, save_name, read);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateSave stores a new save (or replaces one with the same key) and
// returns its row id.
func (db *DB) CreateSave(player, saveName string, state *game.GameState) (int64, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("marshal game state: %w", err)
	}

	res, err := db.conn.Exec(`
		INSERT OR REPLACE INTO game_saves (player_name, save_name, turn_number, game_state, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		player, saveName, state.TurnNumber, string(blob),
	)
	if err != nil {
		return 0, fmt.Errorf("insert save: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	slog.Info("game save created", "player", player, "save", saveName, "save_id", id)
	return id, nil
}

// LoadSave returns the stored state for (player, save name), or
// ErrSaveNotFound.
func (db *DB) LoadSave(player, saveName string) (*game.GameState, error) {
	var blob string
	err := db.conn.Get(&blob,
		"SELECT game_state FROM game_saves WHERE player_name = ? AND save_name = ?",
		player, saveName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query save: %w", err)
	}

	var state game.GameState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("parse game state: %w", err)
	}
	return &state, nil
}

// UpdateSave replaces the stored state for an existing save.
func (db *DB) UpdateSave(player, saveName string, state *game.GameState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}

	res, err := db.conn.Exec(`
		UPDATE game_saves
		SET turn_number = ?, game_state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE player_name = ? AND save_name = ?`,
		state.TurnNumber, string(blob), player, saveName,
	)
	if err != nil {
		return fmt.Errorf("update save: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSaveNotFound
	}
	return nil
}

// SaveInfo summarizes one save file for a player.
type SaveInfo struct {
	SaveName   string `db:"save_name" json:"saveName"`
	TurnNumber int    `db:"turn_number" json:"turnNumber"`
	UpdatedAt  string `db:"updated_at" json:"updatedAt"`
}

// ListSaves returns a player's saves, most recently updated first.
func (db *DB) ListSaves(player string) ([]SaveInfo, error) {
	var saves []SaveInfo
	err := db.conn.Select(&saves, `
		SELECT save_name, turn_number, updated_at
		FROM game_saves
		WHERE player_name = ?
		ORDER BY updated_at DESC`,
		player,
	)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	return saves, nil
}

// AddEmails stores inbox messages for a save.
func (db *DB) AddEmails(player, saveName string, emails []mail.Email) error {
	if len(emails) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`
		INSERT INTO emails (
			id, player_name, save_name, from_address, from_name, to_address,
			subject, body, timestamp, kind, requires_response, read, archived
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range emails {
		_, err := stmt.Exec(
			e.ID, player, saveName, e.From, e.FromName, e.To,
			e.Subject, e.Body, e.Timestamp.Format(time.RFC3339), e.Kind,
			boolToInt(e.RequiresResponse), boolToInt(e.Read), boolToInt(e.Archived),
		)
		if err != nil {
			return fmt.Errorf("insert email %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Emails returns the most recent inbox messages for a save.
func (db *DB) Emails(player, saveName string, limit int) ([]mail.Email, error) {
	if limit <= 0 {
		limit = 50
	}

	type row struct {
		ID               string `db:"id"`
		FromAddress      string `db:"from_address"`
		FromName         string `db:"from_name"`
		ToAddress        string `db:"to_address"`
		Subject          string `db:"subject"`
		Body             string `db:"body"`
		Timestamp        string `db:"timestamp"`
		Kind             string `db:"kind"`
		RequiresResponse int    `db:"requires_response"`
		Read             int    `db:"read"`
		Archived         int    `db:"archived"`
	}

	var rows []row
	err := db.conn.Select(&rows, `
		SELECT id, from_address, from_name, to_address, subject, body,
		       timestamp, kind, requires_response, read, archived
		FROM emails
		WHERE player_name = ? AND save_name = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		player, saveName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}

	emails := make([]mail.Email, 0, len(rows))
	for _, r := range rows {
		ts, _ := time.Parse(time.RFC3339, r.Timestamp)
		emails = append(emails, mail.Email{
			ID:               r.ID,
			From:             r.FromAddress,
			FromName:         r.FromName,
			To:               r.ToAddress,
			Subject:          r.Subject,
			Body:             r.Body,
			Timestamp:        ts,
			Kind:             r.Kind,
			RequiresResponse: r.RequiresResponse != 0,
			Read:             r.Read != 0,
			Archived:         r.Archived != 0,
		})
	}
	return emails, nil
}

// MarkEmailRead flags one email as read. Returns false if the id is
// unknown.
func (db *DB) MarkEmailRead(id string) (bool, error) {
	res, err := db.conn.Exec("UPDATE emails SET read = 1 WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping verifies the database connection.
func (db *DB) Ping() error {
	var one int
	if err := db.conn.Get(&one, "SELECT 1"); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

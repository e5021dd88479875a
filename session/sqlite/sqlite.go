// Package sqlite provides a durable core.ConversationStore backed by SQLite
// (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentproxy/core"
)

// Store persists conversations as one row per conversation with the history
// encoded as JSON.
type Store struct {
	db *sql.DB
}

var _ core.ConversationStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	// Pragmas go into the DSN so every pooled connection gets them. WAL lets
	// readers proceed while a save is in flight; the busy timeout makes
	// concurrent writers wait instead of failing with SQLITE_BUSY.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		history     TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`)
	return err
}

// Create inserts a new empty conversation.
func (s *Store) Create(ctx context.Context) (*core.Conversation, error) {
	conv := core.NewConversation(core.NewID())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, history, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, "[]", formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("%w: create conversation: %w", core.ErrPersistence, err)
	}

	return conv, nil
}

// Load reads a conversation by id.
func (s *Store) Load(ctx context.Context, id string) (*core.Conversation, error) {
	var history, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT history, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&history, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load conversation: %w", core.ErrPersistence, err)
	}

	conv := &core.Conversation{ID: id, History: []core.Message{}}
	if err := json.Unmarshal([]byte(history), &conv.History); err != nil {
		return nil, fmt.Errorf("%w: decode history of %s: %w", core.ErrPersistence, id, err)
	}

	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	if conv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}

	return conv, nil
}

// Save upserts the full conversation snapshot.
func (s *Store) Save(ctx context.Context, c *core.Conversation) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: conversation id must not be empty", core.ErrPersistence)
	}

	history := c.History
	if history == nil {
		history = []core.Message{}
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("%w: encode history: %w", core.ErrPersistence, err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, history, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			history = excluded.history,
			updated_at = excluded.updated_at`,
		c.ID, string(data), formatTime(createdAt), formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("%w: save conversation: %w", core.ErrPersistence, err)
	}

	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

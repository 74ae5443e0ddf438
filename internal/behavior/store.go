// Package behavior provides the SQLite store for user behavioral events
// (searches and clicks). The engine appends and reads; it never rewrites
// history.
package behavior

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// EventType distinguishes the two behavioral signal streams.
type EventType string

const (
	// EventSearch is a text search the user ran (image searches are recorded
	// as text with a marker prefix on the value).
	EventSearch EventType = "search"
	// EventClick is a catalog item the user clicked; the value is the item path.
	EventClick EventType = "click"
)

// Event is one timestamped behavioral record.
type Event struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      EventType `json:"type"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists behavioral events in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the behavior database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS behavior_events (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_behavior_user_type_time
		ON behavior_events(user_id, type, created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Add appends one event. Blank values are ignored.
func (s *Store) Add(ctx context.Context, userID int64, eventType EventType, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO behavior_events (id, user_id, type, value, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, string(eventType), value, time.Now().UTC(),
	)
	return err
}

// RecentMixed returns the user's most recent events across both types, merged
// and sorted by timestamp descending, truncated to limit. Each type is
// over-fetched (2x limit) before the merge so a burst in one stream cannot
// hide a recent event from the other.
func (s *Store) RecentMixed(ctx context.Context, userID int64, limit int) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	var merged []Event
	for _, eventType := range []EventType{EventSearch, EventClick} {
		events, err := s.recentByType(ctx, userID, eventType, 2*limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, events...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (s *Store) recentByType(ctx context.Context, userID int64, eventType EventType, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, value, created_at FROM behavior_events
		 WHERE user_id = ? AND type = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, string(eventType), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// History returns the user's full activity log, newest first.
func (s *Store) History(ctx context.Context, userID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, value, created_at FROM behavior_events
		 WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// HasAny reports whether the user has any recorded events at all.
func (s *Store) HasAny(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM behavior_events WHERE user_id = ? LIMIT 1`, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// DeleteAll removes every event for the user.
func (s *Store) DeleteAll(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM behavior_events WHERE user_id = ?`, userID)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var eventType string
		if err := rows.Scan(&e.ID, &e.UserID, &eventType, &e.Value, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Package eventlog persists SMS diagnostics in a local SQLite database so
// operators can review provider warnings and errors after the fact.
package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrClosed is returned when the store is used after Close.
var ErrClosed = errors.New("eventlog: store closed")

// Event is one recorded diagnostic.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Provider  string    `json:"provider"`
	Event     string    `json:"event"`
	MessageID string    `json:"message_id,omitempty"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS sms_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	level      TEXT NOT NULL,
	provider   TEXT NOT NULL,
	event      TEXT NOT NULL,
	message_id TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sms_events_created_at ON sms_events (created_at);
`

// Store is a SQLite-backed event log. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// Open opens (creating if needed) the event log at path. Use ":memory:" for
// a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("eventlog: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record appends an event. CreatedAt is set by the store when zero.
func (s *Store) Record(ctx context.Context, e Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sms_events (level, provider, event, message_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Level, e.Provider, e.Event, e.MessageID, e.Detail, e.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("eventlog: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, provider, event, message_id, detail, created_at
		 FROM sms_events ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.Level, &e.Provider, &e.Event, &e.MessageID, &e.Detail, &createdMs); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdMs).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close releases the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

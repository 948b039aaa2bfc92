package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/huddle/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// SQLite is the default History implementation.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room       TEXT    NOT NULL,
		kind       TEXT    NOT NULL,
		user_id    TEXT    NOT NULL DEFAULT '',
		detail     TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room       TEXT    NOT NULL,
		user_id    TEXT    NOT NULL DEFAULT '',
		name       TEXT    NOT NULL DEFAULT '',
		body       TEXT    NOT NULL,
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_events_room   ON events(room);
	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RecordEvent stores one room lifecycle event.
func (s *SQLite) RecordEvent(room string, kind model.EventKind, userID, detail string) error {
	if !kind.Valid() {
		return fmt.Errorf("store: record event: unknown kind %q", kind)
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO events (room, kind, user_id, detail) VALUES (?, ?, ?, ?)`,
		room, string(kind), userID, detail)
	if err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}

// RecordMessage stores one chat message.
func (s *SQLite) RecordMessage(room, userID, name, body string) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO messages (room, user_id, name, body) VALUES (?, ?, ?, ?)`,
		room, userID, name, body)
	if err != nil {
		return fmt.Errorf("store: record message: %w", err)
	}
	return nil
}

// Events returns up to limit most recent events for a room, oldest first.
func (s *SQLite) Events(room string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, room, kind, user_id, detail, created_at
		 FROM (SELECT * FROM events WHERE room = ? ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, room, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var kind, createdAt string
		if err := rows.Scan(&ev.ID, &ev.Room, &kind, &ev.UserID, &ev.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		ev.CreatedAt = parseDBTime(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Messages returns up to limit most recent messages for a room, oldest first.
func (s *SQLite) Messages(room string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, room, user_id, name, body, created_at
		 FROM (SELECT * FROM messages WHERE room = ? ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`, room, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Room, &m.UserID, &m.Name, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.CreatedAt = parseDBTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// parseDBTime parses SQLite's datetime('now') format. Zero time on failure.
func parseDBTime(s string) time.Time {
	t, err := time.Parse(dbTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

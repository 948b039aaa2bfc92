// Package store provides the optional history archive: chat messages and
// room lifecycle events recorded for operators. It is never read on the
// relay hot path, and live room/group state is never persisted.
package store

import (
	"github.com/NicolasHaas/huddle/pkg/model"
)

// History defines the archive interface. Implementations include the default
// SQLite store, an in-memory store for tests, and a no-op store used when
// archiving is disabled.
type History interface {
	// Close closes the underlying storage.
	Close() error

	// RecordEvent stores one room lifecycle event (join, leave, kick, ban).
	RecordEvent(room string, kind model.EventKind, userID, detail string) error

	// RecordMessage stores one chat message.
	RecordMessage(room, userID, name, body string) error

	// Events returns up to limit most recent events for a room, oldest first.
	// limit <= 0 means no limit.
	Events(room string, limit int) ([]model.Event, error)

	// Messages returns up to limit most recent messages for a room, oldest
	// first. limit <= 0 means no limit.
	Messages(room string, limit int) ([]model.Message, error)
}

// Compile-time checks: all implementations satisfy History.
var (
	_ History = (*SQLite)(nil)
	_ History = (*Memory)(nil)
	_ History = (*Nop)(nil)
)

// Nop discards everything. Used when no database path is configured.
type Nop struct{}

func (Nop) Close() error { return nil }

func (Nop) RecordEvent(string, model.EventKind, string, string) error { return nil }

func (Nop) RecordMessage(string, string, string, string) error { return nil }

func (Nop) Events(string, int) ([]model.Event, error) { return nil, nil }

func (Nop) Messages(string, int) ([]model.Message, error) { return nil, nil }

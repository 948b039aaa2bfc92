package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/NicolasHaas/huddle/pkg/model"
)

// Memory provides an in-memory History implementation for tests.
// It mirrors SQLite behavior for validation and ordering.
type Memory struct {
	mu sync.RWMutex

	now func() time.Time

	nextEventID   int64
	nextMessageID int64

	events   []model.Event
	messages []model.Message
}

// NewMemory creates a Memory history using time.Now().UTC().
func NewMemory() *Memory {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a Memory history with a custom clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Memory{
		now:           now,
		nextEventID:   1,
		nextMessageID: 1,
	}
}

// Close is a no-op for Memory.
func (s *Memory) Close() error {
	return nil
}

// RecordEvent stores one room lifecycle event.
func (s *Memory) RecordEvent(room string, kind model.EventKind, userID, detail string) error {
	if !kind.Valid() {
		return fmt.Errorf("store: record event: unknown kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, model.Event{
		ID:        s.nextEventID,
		Room:      room,
		Kind:      kind,
		UserID:    userID,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	})
	s.nextEventID++
	return nil
}

// RecordMessage stores one chat message.
func (s *Memory) RecordMessage(room, userID, name, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, model.Message{
		ID:        s.nextMessageID,
		Room:      room,
		UserID:    userID,
		Name:      name,
		Body:      body,
		CreatedAt: s.now().UTC(),
	})
	s.nextMessageID++
	return nil
}

// Events returns up to limit most recent events for a room, oldest first.
func (s *Memory) Events(room string, limit int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, ev := range s.events {
		if ev.Room == room {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Messages returns up to limit most recent messages for a room, oldest first.
func (s *Memory) Messages(room string, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.Room == room {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

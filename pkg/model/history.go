package model

import "time"

// EventKind classifies a recorded room lifecycle event.
type EventKind string

const (
	EventJoin  EventKind = "join"
	EventLeave EventKind = "leave"
	EventKick  EventKind = "kick"
	EventBan   EventKind = "ban"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventJoin, EventLeave, EventKick, EventBan:
		return true
	default:
		return false
	}
}

// Event is one recorded room lifecycle event. Room and group state itself is
// never persisted; events are an operator-facing audit trail only.
type Event struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	Kind      EventKind `json:"kind"`
	UserID    string    `json:"user_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one archived chat message.
type Message struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

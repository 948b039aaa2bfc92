package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/NicolasHaas/huddle/pkg/store"
)

// Registry owns the set of live rooms and hands out process-unique user ids.
// Rooms are created on first join and removed when their last member leaves;
// the closed flag on Room plus the retry loop in Join guarantee that a join
// racing a teardown never attaches to a dying room and that exactly one Room
// instance exists per key at a time.
type Registry struct {
	cfg     Config
	metrics *Metrics
	history store.History

	mu     sync.Mutex
	rooms  map[string]*Room
	nextID int64
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, metrics *Metrics, history store.History) *Registry {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if history == nil {
		history = store.Nop{}
	}
	return &Registry{
		cfg:     cfg,
		metrics: metrics,
		history: history,
		rooms:   make(map[string]*Room),
	}
}

// NextUserID returns a fresh user id. Ids are unique for the lifetime of the
// registry and never reused.
func (reg *Registry) NextUserID() string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	id := reg.nextID
	reg.nextID++
	return fmt.Sprintf("userid_%d", id)
}

// Resolve returns the live Room for key, creating one if none exists.
// A closed room still present in the map is replaced; its closer removes
// entries by pointer comparison, so the fresh room is never clobbered.
func (reg *Registry) Resolve(key string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[key]; ok && !room.isClosed() {
		return room
	}

	name := key
	var maxUsers int
	if preset, ok := reg.cfg.RoomPresets[key]; ok {
		if preset.Name != "" {
			name = preset.Name
		}
		maxUsers = preset.MaxUsers
	}

	room := newRoom(reg, key, name, maxUsers)
	reg.rooms[key] = room
	reg.metrics.RoomsCreated.Add(1)
	reg.metrics.ActiveRooms.Add(1)
	slog.Info("room created", "room", key)
	return room
}

// remove deletes a closed room from the registry. Only removes the exact
// instance it is given; a replacement room under the same key is untouched.
func (reg *Registry) remove(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if current, ok := reg.rooms[room.key]; ok && current == room {
		delete(reg.rooms, room.key)
		reg.metrics.RoomsDestroyed.Add(1)
		reg.metrics.ActiveRooms.Add(-1)
		slog.Info("room empty, destroyed", "room", room.key)
	}
}

// closeAll destroys every live connection in every room. Used on shutdown;
// hijacked websocket connections are invisible to http.Server teardown, so
// the registry has to reach them itself. Destroys run outside the locks
// because each one re-enters the room through Remove.
func (reg *Registry) closeAll() {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.Unlock()

	for _, room := range rooms {
		room.mu.Lock()
		conns := make([]*Conn, 0, len(room.conns))
		for _, c := range room.conns {
			conns = append(conns, c)
		}
		room.mu.Unlock()
		for _, c := range conns {
			c.destroy()
		}
	}
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

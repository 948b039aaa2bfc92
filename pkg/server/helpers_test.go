package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/huddle/pkg/protocol"
	"github.com/NicolasHaas/huddle/pkg/store"
)

var errSocketClosed = errors.New("fake socket closed")

// fakeSocket implements the socket interface for tests without a network.
// Inbound frames are queued with queueFrame; outbound frames are recorded.
// With autoPong set, every ping is answered through the registered pong
// handler, as a live peer would.
type fakeSocket struct {
	frames   chan []byte
	closed   chan struct{}
	once     sync.Once
	autoPong bool

	mu      sync.Mutex
	pong    func(string) error
	written [][]byte
	pings   int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeSocket) queueFrame(data []byte) {
	f.frames <- data
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.frames:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errSocketClosed
	}
}

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errSocketClosed
	default:
	}
	f.mu.Lock()
	f.written = append(f.written, append([]byte(nil), data...))
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, _ []byte, _ time.Time) error {
	select {
	case <-f.closed:
		return errSocketClosed
	default:
	}
	if messageType == websocket.PingMessage {
		f.mu.Lock()
		f.pings++
		pong := f.pong
		auto := f.autoPong
		f.mu.Unlock()
		if auto && pong != nil {
			_ = pong("")
		}
	}
	return nil
}

func (f *fakeSocket) SetReadLimit(int64)               {}
func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	f.pong = h
	f.mu.Unlock()
}

func (f *fakeSocket) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func (f *fakeSocket) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// newTestRegistry builds a registry with timings suitable for unit tests
// and an in-memory history.
func newTestRegistry(t *testing.T) (*Registry, *store.Memory) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = time.Hour // heartbeat-specific tests override this
	cfg.KickDrainChecks = 2
	cfg.KickDrainInterval = time.Millisecond
	history := store.NewMemory()
	return NewRegistry(cfg, NewMetrics(), history), history
}

// joinConn creates a connection on a fake socket and joins it to the room
// for key. The write pump is not started; outbound messages stay queued on
// c.send for inspection.
func joinConn(t *testing.T, reg *Registry, key string) (*Conn, *protocol.RoomInfo) {
	t.Helper()
	c := newConn(reg, newFakeSocket(), "test")
	for {
		room := reg.Resolve(key)
		info, err := room.Join(c)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		if err != nil {
			t.Fatalf("Join: unexpected error: %v", err)
		}
		return c, info
	}
}

// drainQueue empties a connection's outbound queue.
func drainQueue(c *Conn) []*protocol.ServerMessage {
	var out []*protocol.ServerMessage
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

// queuedCmds returns just the command tags of the queued messages.
func queuedCmds(c *Conn) []protocol.Command {
	msgs := drainQueue(c)
	cmds := make([]protocol.Command, len(msgs))
	for i, m := range msgs {
		cmds[i] = m.Cmd
	}
	return cmds
}

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// assertGroupInvariants checks that no user is in two groups, no group has
// duplicate members, and every group has at least two members.
func assertGroupInvariants(t *testing.T, r *Room) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]string)
	for gid, members := range r.groups {
		if len(members) < 2 {
			t.Fatalf("group %s has %d members, groups below two members must be deleted", gid, len(members))
		}
		inGroup := make(map[string]bool)
		for _, uid := range members {
			if inGroup[uid] {
				t.Fatalf("group %s contains duplicate member %s", gid, uid)
			}
			inGroup[uid] = true
			if prev, ok := seen[uid]; ok {
				t.Fatalf("user %s is in groups %s and %s simultaneously", uid, prev, gid)
			}
			seen[uid] = gid
		}
	}
	for uid, conn := range r.conns {
		if conn.group != "" && seen[uid] != conn.group {
			t.Fatalf("user %s has group %s but group table says %q", uid, conn.group, seen[uid])
		}
	}
}

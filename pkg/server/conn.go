package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/huddle/pkg/protocol"
)

// Time allowed to write a message to the peer.
const writeWait = 10 * time.Second

// socket is the slice of *websocket.Conn the connection actually uses.
// Narrowed to an interface so room and dispatch logic can run against a fake
// transport in tests.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ socket = (*websocket.Conn)(nil)

// Conn represents one participant's session: identity, liveness state and
// the per-message dispatcher. Its lifecycle is connecting -> joined ->
// destroyed; there is no way back out of destroyed.
//
// The presence fields (name, snapshot, group, muted) are owned by the Room
// and only read or written under the room's lock.
type Conn struct {
	id     string
	ws     socket
	reg    *Registry
	remote string

	send chan *protocol.ServerMessage
	done chan struct{}

	alive     atomic.Bool
	destroyed atomic.Bool

	// roomMu guards room: Join writes it while destroy may already be
	// running on the write pump (the pumps start before the room is
	// resolved, so the final-error path can flush).
	roomMu sync.Mutex
	room   *Room

	// Guarded by room.mu once joined.
	name     string
	snapshot string
	group    string
	muted    bool
}

// newConn builds a connection with a fresh user id. The caller is
// responsible for starting the pumps and joining a room.
func newConn(reg *Registry, ws socket, remote string) *Conn {
	id := reg.NextUserID()
	c := &Conn{
		id:     id,
		ws:     ws,
		reg:    reg,
		remote: remote,
		send:   make(chan *protocol.ServerMessage, reg.cfg.SendQueueSize),
		done:   make(chan struct{}),
		name:   id, // display name defaults to the assigned id
	}
	c.alive.Store(true)
	return c
}

// ID returns the server-assigned user id.
func (c *Conn) ID() string { return c.id }

// enqueue queues msg for delivery. Delivery is best-effort: a full queue
// drops the message rather than blocking the caller, which may be a room
// operation holding the room lock.
func (c *Conn) enqueue(msg *protocol.ServerMessage) {
	select {
	case c.send <- msg:
	default:
		c.reg.metrics.DroppedSends.Add(1)
		slog.Warn("send queue full, dropping message", "user", c.id, "cmd", msg.Cmd)
	}
}

// respond queues a direct response echoing the triggering req_id.
func (c *Conn) respond(reqID string, msg *protocol.ServerMessage) {
	msg.ResID = reqID
	c.enqueue(msg)
}

// writePump owns all writes to the socket, including the heartbeat probes.
// One goroutine per connection; it exits when the connection is destroyed or
// the transport fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.reg.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("marshal outbound message", "user", c.id, "err", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("write failed", "user", c.id, "err", err)
				c.destroy()
				return
			}

		case <-ticker.C:
			// The previous probe must have been answered before a new one
			// goes out; an unanswered probe means the peer is gone.
			if !c.alive.Load() {
				slog.Warn("no pong before next probe, terminating", "user", c.id, "remote", c.remote)
				c.reg.metrics.HeartbeatTimeouts.Add(1)
				c.destroy()
				return
			}
			c.alive.Store(false)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Debug("ping failed", "user", c.id, "err", err)
				c.destroy()
				return
			}

		case <-c.done:
			return
		}
	}
}

// readPump reads frames until the transport closes or a frame fails to
// parse. One bad frame ends the session; there is no per-frame recovery.
func (c *Conn) readPump() {
	defer c.destroy()

	c.ws.SetReadLimit(c.reg.cfg.MaxMessageBytes)
	c.ws.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("read error", "user", c.id, "err", err)
			}
			return
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			slog.Error("malformed frame, closing connection", "user", c.id, "remote", c.remote, "err", err)
			c.reg.metrics.ProtocolErrors.Add(1)
			return
		}
		c.handleMessage(msg)
	}
}

// sendFinalError queues one error message, lets the queue drain within the
// kick-drain bound, and destroys the connection without ever joining a room.
func (c *Conn) sendFinalError(msg string) {
	c.enqueue(protocol.Error(msg))
	c.awaitDrain(c.reg.cfg.KickDrainChecks, c.reg.cfg.KickDrainInterval)
	c.destroy()
}

// awaitDrain polls until the outbound queue is empty or the bounded retry
// budget is spent. It never waits forever.
func (c *Conn) awaitDrain(checks int, interval time.Duration) {
	for i := 0; i < checks; i++ {
		if len(c.send) == 0 {
			return
		}
		time.Sleep(interval)
	}
}

// destroy tears the connection down: leaves the room, stops the heartbeat
// and closes the transport. Idempotent; every teardown path funnels here.
func (c *Conn) destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)
	c.roomMu.Lock()
	room := c.room
	c.roomMu.Unlock()
	if room != nil {
		room.Remove(c)
	}
	_ = c.ws.Close()
	c.reg.metrics.ActiveConnections.Add(-1)
	c.reg.metrics.TotalDisconnects.Add(1)
	slog.Info("connection destroyed", "user", c.id, "remote", c.remote)
}

// Package server implements the huddle room coordinator: the websocket
// endpoint, the room registry, per-room state and the video-chat group
// bookkeeping.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/huddle/pkg/protocol"
	"github.com/NicolasHaas/huddle/pkg/store"
)

// wsPrefix is the fixed upgrade path prefix; the remainder of the path is
// the room identifier.
const wsPrefix = "/ws/"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Rooms are unauthenticated namespaces; origin checks belong to the
		// deployment in front of us.
		return true
	},
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of History and will Close() it on shutdown.
type Dependencies struct {
	History store.History
}

// Server is the main huddle server.
type Server struct {
	cfg      Config
	registry *Registry
	metrics  *Metrics
	history  store.History
	httpSrv  *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	metrics := NewMetrics()
	history := deps.History
	if history == nil {
		history = store.Nop{}
	}
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(cfg, metrics, history),
		metrics:  metrics,
		history:  history,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the room registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the HTTP handler serving the upgrade endpoint and the
// health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})
	mux.HandleFunc(wsPrefix, s.handleWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("bad request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	return mux
}

// handleWS upgrades the connection and runs its session until the transport
// closes or the connection is destroyed.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, wsPrefix)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)

	conn := newConn(s.registry, ws, r.RemoteAddr)
	slog.Info("connection established", "user", conn.id, "remote", conn.remote, "room", key)
	go conn.writePump()

	// Room identifiers are opaque, but they must be non-empty.
	if key == "" {
		conn.sendFinalError("No room name specified.")
		return
	}

	// Resolve-and-join retries when the room empties and closes between
	// resolution and join, so we never attach to a room mid-teardown.
	for {
		room := s.registry.Resolve(key)
		info, err := room.Join(conn)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		if errors.Is(err, ErrRoomFull) {
			conn.sendFinalError("Room is full.")
			return
		}
		conn.enqueue(&protocol.ServerMessage{Cmd: protocol.CmdRoomInfo, Data: info})
		break
	}

	slog.Info("joined room", "user", conn.id, "room", key)
	conn.readPump()
}

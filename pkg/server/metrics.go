package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime websocket connections accepted
	ActiveConnections atomic.Int64 // current live connections
	TotalDisconnects  atomic.Int64 // total connection destroys (clean + unclean)
	HeartbeatTimeouts atomic.Int64 // connections destroyed for missing a liveness probe

	// Room counters
	ActiveRooms    atomic.Int64 // current live rooms
	RoomsCreated   atomic.Int64 // rooms created during this run
	RoomsDestroyed atomic.Int64 // rooms destroyed during this run

	// Relay counters
	ChatMessages   atomic.Int64 // chat messages broadcast
	Snapshots      atomic.Int64 // presence snapshots broadcast
	SignalsRelayed atomic.Int64 // offer/accept/ice/stop relays delivered

	// Group counters
	GroupsCreated atomic.Int64 // video-chat groups created
	GroupsDeleted atomic.Int64 // video-chat groups dissolved

	// Moderation and error counters
	KickCount      atomic.Int64 // participants kicked
	ProtocolErrors atomic.Int64 // malformed frames, missing req_ids, unknown commands
	DroppedSends   atomic.Int64 // outbound messages dropped on a full send queue
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`
	HeartbeatTimeouts int64 `json:"heartbeat_timeouts"`

	ActiveRooms    int64 `json:"active_rooms"`
	RoomsCreated   int64 `json:"rooms_created"`
	RoomsDestroyed int64 `json:"rooms_destroyed"`

	ChatMessages   int64 `json:"chat_messages"`
	Snapshots      int64 `json:"snapshots"`
	SignalsRelayed int64 `json:"signals_relayed"`

	GroupsCreated int64 `json:"groups_created"`
	GroupsDeleted int64 `json:"groups_deleted"`

	KickCount      int64 `json:"kick_count"`
	ProtocolErrors int64 `json:"protocol_errors"`
	DroppedSends   int64 `json:"dropped_sends"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		HeartbeatTimeouts: m.HeartbeatTimeouts.Load(),
		ActiveRooms:       m.ActiveRooms.Load(),
		RoomsCreated:      m.RoomsCreated.Load(),
		RoomsDestroyed:    m.RoomsDestroyed.Load(),
		ChatMessages:      m.ChatMessages.Load(),
		Snapshots:         m.Snapshots.Load(),
		SignalsRelayed:    m.SignalsRelayed.Load(),
		GroupsCreated:     m.GroupsCreated.Load(),
		GroupsDeleted:     m.GroupsDeleted.Load(),
		KickCount:         m.KickCount.Load(),
		ProtocolErrors:    m.ProtocolErrors.Load(),
		DroppedSends:      m.DroppedSends.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"rooms", s.ActiveRooms,
		"chat_msgs", s.ChatMessages,
		"signals", s.SignalsRelayed,
		"groups_created", s.GroupsCreated,
		"heartbeat_timeouts", s.HeartbeatTimeouts,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}

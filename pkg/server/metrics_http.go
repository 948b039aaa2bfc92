package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
//
// Bind address is :4001 by default — configurable via Config.MetricsAddr.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("huddle_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("huddle_connections_active", "Current live websocket connections.", "gauge",
		m.ActiveConnections.Load())
	write("huddle_connections_total", "Lifetime websocket connections accepted.", "counter",
		m.TotalConnections.Load())
	write("huddle_disconnects_total", "Total connection destroys.", "counter",
		m.TotalDisconnects.Load())
	write("huddle_heartbeat_timeouts_total", "Connections destroyed for missing a liveness probe.", "counter",
		m.HeartbeatTimeouts.Load())

	write("huddle_rooms_active", "Current live rooms.", "gauge",
		m.ActiveRooms.Load())
	write("huddle_rooms_created_total", "Rooms created.", "counter",
		m.RoomsCreated.Load())
	write("huddle_rooms_destroyed_total", "Rooms destroyed.", "counter",
		m.RoomsDestroyed.Load())

	write("huddle_chat_messages_total", "Chat messages broadcast.", "counter",
		m.ChatMessages.Load())
	write("huddle_snapshots_total", "Presence snapshots broadcast.", "counter",
		m.Snapshots.Load())
	write("huddle_signals_relayed_total", "Call-setup relays delivered.", "counter",
		m.SignalsRelayed.Load())

	write("huddle_groups_created_total", "Video-chat groups created.", "counter",
		m.GroupsCreated.Load())
	write("huddle_groups_deleted_total", "Video-chat groups dissolved.", "counter",
		m.GroupsDeleted.Load())

	write("huddle_kicks_total", "Participants kicked.", "counter",
		m.KickCount.Load())
	write("huddle_protocol_errors_total", "Protocol errors from clients.", "counter",
		m.ProtocolErrors.Load())
	write("huddle_dropped_sends_total", "Outbound messages dropped on full send queues.", "counter",
		m.DroppedSends.Load())
}

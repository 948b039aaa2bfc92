package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/huddle/pkg/logging"
	"github.com/NicolasHaas/huddle/pkg/server"
	"github.com/NicolasHaas/huddle/pkg/store"
	"github.com/NicolasHaas/huddle/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP bind address for websocket upgrades and /healthz")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&cfg.DBPath, "db", "", "SQLite history database path (empty to disable archiving)")
	flag.StringVar(&cfg.RoomsFile, "rooms-file", "", "YAML file defining room presets")
	flag.DurationVar(&cfg.HeartbeatInterval, "heartbeat", cfg.HeartbeatInterval, "Liveness probe interval")
	showVersion := flag.Bool("version", false, "Print version and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println("huddle " + version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if cfg.RoomsFile != "" {
		presets, err := server.LoadRoomPresets(cfg.RoomsFile)
		if err != nil {
			slog.Error("load rooms config", "err", err)
			os.Exit(1)
		}
		cfg.RoomPresets = presets
		slog.Info("room presets loaded", "file", cfg.RoomsFile, "rooms", len(presets))
	}

	var history store.History = store.Nop{}
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			slog.Error("open history database", "err", err)
			os.Exit(1)
		}
		history = st
		slog.Info("history archiving enabled", "db", cfg.DBPath)
	}

	srv := server.New(cfg, server.Dependencies{History: history})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

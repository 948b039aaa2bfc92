package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string // HTTP bind address for /ws/ upgrades and /healthz (e.g. ":4000")
	MetricsAddr string // HTTP bind address for /metrics endpoint (empty = disabled)
	DBPath      string // SQLite history database path (empty = archiving disabled)
	RoomsFile   string // YAML file defining room presets (display name, max users)

	// HeartbeatInterval is the liveness probe period. A peer that has not
	// answered the previous probe when the next one fires is destroyed.
	HeartbeatInterval time.Duration

	// KickDrainChecks and KickDrainInterval bound the wait for a kicked
	// connection's outbound queue to drain before it is forcibly destroyed.
	KickDrainChecks   int
	KickDrainInterval time.Duration

	// SendQueueSize is the per-connection outbound buffer. A full queue
	// drops messages rather than blocking the room.
	SendQueueSize int

	// MaxMessageBytes limits inbound frame size. Snapshots are inline
	// base64 images, so this is generous.
	MaxMessageBytes int64

	// RoomPresets maps room keys to optional display names and capacity
	// limits. Populated from RoomsFile.
	RoomPresets map[string]RoomPreset
}

// RoomPreset is optional per-room configuration. Rooms without a preset are
// created on demand with the path as display name and no capacity limit.
type RoomPreset struct {
	Name     string // display name sent in room_info
	MaxUsers int    // 0 = unlimited
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":4000",
		MetricsAddr:       ":4001",
		HeartbeatInterval: 30 * time.Second,
		KickDrainChecks:   10,
		KickDrainInterval: 100 * time.Millisecond,
		SendQueueSize:     64,
		MaxMessageBytes:   1 << 20, // 1 MiB
	}
}

// RoomYAML represents one room preset in the YAML config.
type RoomYAML struct {
	Path     string `yaml:"path"`
	Name     string `yaml:"name,omitempty"`
	MaxUsers int    `yaml:"max_users,omitempty"`
}

// RoomsConfig is the top-level YAML config for room presets.
type RoomsConfig struct {
	Rooms []RoomYAML `yaml:"rooms"`
}

// LoadRoomPresets reads a rooms YAML file into a preset map keyed by path.
func LoadRoomPresets(path string) (map[string]RoomPreset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}
	return ParseRoomPresets(data)
}

// ParseRoomPresets parses YAML data into a preset map keyed by path.
func ParseRoomPresets(data []byte) (map[string]RoomPreset, error) {
	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}

	presets := make(map[string]RoomPreset, len(cfg.Rooms))
	for _, r := range cfg.Rooms {
		if r.Path == "" {
			return nil, fmt.Errorf("rooms config: entry with empty path")
		}
		if r.MaxUsers < 0 {
			return nil, fmt.Errorf("rooms config: room %q: negative max_users", r.Path)
		}
		if _, dup := presets[r.Path]; dup {
			return nil, fmt.Errorf("rooms config: duplicate path %q", r.Path)
		}
		presets[r.Path] = RoomPreset{Name: r.Name, MaxUsers: r.MaxUsers}
	}
	return presets, nil
}

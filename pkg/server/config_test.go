package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRoomPresets(t *testing.T) {
	data := []byte(`
rooms:
  - path: lobby
    name: Main Lobby
  - path: standup
    name: Weekly Standup
    max_users: 8
  - path: adhoc
`)
	presets, err := ParseRoomPresets(data)
	if err != nil {
		t.Fatalf("ParseRoomPresets: %v", err)
	}
	if len(presets) != 3 {
		t.Fatalf("got %d presets, want 3", len(presets))
	}
	if p := presets["standup"]; p.Name != "Weekly Standup" || p.MaxUsers != 8 {
		t.Errorf("standup preset = %+v", p)
	}
	if p := presets["adhoc"]; p.Name != "" || p.MaxUsers != 0 {
		t.Errorf("bare preset = %+v, want zero values", p)
	}
}

func TestParseRoomPresetsRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty path", "rooms:\n  - name: No Path\n"},
		{"negative max_users", "rooms:\n  - path: x\n    max_users: -1\n"},
		{"duplicate path", "rooms:\n  - path: x\n  - path: x\n"},
		{"not yaml", ": :\n\t"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseRoomPresets([]byte(tc.yaml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadRoomPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	if err := os.WriteFile(path, []byte("rooms:\n  - path: lobby\n    max_users: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	presets, err := LoadRoomPresets(path)
	if err != nil {
		t.Fatalf("LoadRoomPresets: %v", err)
	}
	if presets["lobby"].MaxUsers != 4 {
		t.Errorf("lobby preset = %+v", presets["lobby"])
	}

	if _, err := LoadRoomPresets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

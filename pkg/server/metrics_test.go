package server

import (
	"encoding/json"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.TotalConnections.Add(3)
	m.ActiveConnections.Add(2)
	m.ChatMessages.Add(7)
	m.GroupsCreated.Add(1)

	s := m.Snapshot()
	if s.TotalConnections != 3 || s.ActiveConnections != 2 {
		t.Errorf("snapshot connections = %d/%d, want 3/2", s.TotalConnections, s.ActiveConnections)
	}
	if s.ChatMessages != 7 || s.GroupsCreated != 1 {
		t.Errorf("snapshot relays = %+v", s)
	}
}

func TestMetricsJSON(t *testing.T) {
	m := NewMetrics()
	m.SignalsRelayed.Add(5)

	var s MetricsSnapshot
	if err := json.Unmarshal([]byte(m.JSON()), &s); err != nil {
		t.Fatalf("JSON output does not parse: %v", err)
	}
	if s.SignalsRelayed != 5 {
		t.Errorf("signals_relayed = %d, want 5", s.SignalsRelayed)
	}
}

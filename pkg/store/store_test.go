package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NicolasHaas/huddle/pkg/model"
	"github.com/NicolasHaas/huddle/pkg/store"
)

// withStores runs a subtest against both History implementations so they
// cannot drift apart.
func withStores(t *testing.T, fn func(t *testing.T, s store.History)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemory())
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() {
			if err := s.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
		fn(t, s)
	})
}

var (
	ignoreEventMeta   = cmpopts.IgnoreFields(model.Event{}, "ID", "CreatedAt")
	ignoreMessageMeta = cmpopts.IgnoreFields(model.Message{}, "ID", "CreatedAt")
)

func TestRecordAndListEvents(t *testing.T) {
	withStores(t, func(t *testing.T, s store.History) {
		if err := s.RecordEvent("lobby", model.EventJoin, "userid_0", "alice"); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
		if err := s.RecordEvent("lobby", model.EventKick, "userid_1", "by userid_0"); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
		if err := s.RecordEvent("other", model.EventJoin, "userid_2", ""); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}

		got, err := s.Events("lobby", 0)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		want := []model.Event{
			{Room: "lobby", Kind: model.EventJoin, UserID: "userid_0", Detail: "alice"},
			{Room: "lobby", Kind: model.EventKick, UserID: "userid_1", Detail: "by userid_0"},
		}
		if diff := cmp.Diff(want, got, ignoreEventMeta); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
		for i := 1; i < len(got); i++ {
			if got[i].ID <= got[i-1].ID {
				t.Errorf("events not in insertion order: %v", got)
			}
		}
	})
}

func TestEventsLimitKeepsMostRecent(t *testing.T) {
	withStores(t, func(t *testing.T, s store.History) {
		for _, uid := range []string{"a", "b", "c", "d"} {
			if err := s.RecordEvent("lobby", model.EventJoin, uid, ""); err != nil {
				t.Fatalf("RecordEvent: %v", err)
			}
		}

		got, err := s.Events("lobby", 2)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		want := []model.Event{
			{Room: "lobby", Kind: model.EventJoin, UserID: "c"},
			{Room: "lobby", Kind: model.EventJoin, UserID: "d"},
		}
		if diff := cmp.Diff(want, got, ignoreEventMeta); diff != "" {
			t.Errorf("limited events mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestRecordEventRejectsUnknownKind(t *testing.T) {
	withStores(t, func(t *testing.T, s store.History) {
		if err := s.RecordEvent("lobby", model.EventKind("promote"), "userid_0", ""); err == nil {
			t.Error("expected an error for an unknown event kind")
		}
	})
}

func TestRecordAndListMessages(t *testing.T) {
	withStores(t, func(t *testing.T, s store.History) {
		if err := s.RecordMessage("lobby", "userid_0", "alice", "hi all"); err != nil {
			t.Fatalf("RecordMessage: %v", err)
		}
		if err := s.RecordMessage("lobby", "userid_1", "bob", "hey"); err != nil {
			t.Fatalf("RecordMessage: %v", err)
		}
		if err := s.RecordMessage("other", "userid_2", "eve", "wrong room"); err != nil {
			t.Fatalf("RecordMessage: %v", err)
		}

		got, err := s.Messages("lobby", 0)
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		want := []model.Message{
			{Room: "lobby", UserID: "userid_0", Name: "alice", Body: "hi all"},
			{Room: "lobby", UserID: "userid_1", Name: "bob", Body: "hey"},
		}
		if diff := cmp.Diff(want, got, ignoreMessageMeta); diff != "" {
			t.Errorf("messages mismatch (-want +got):\n%s", diff)
		}

		limited, err := s.Messages("lobby", 1)
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(limited) != 1 || limited[0].Body != "hey" {
			t.Errorf("limited messages = %+v, want just the newest", limited)
		}
	})
}

func TestUnknownRoomIsEmpty(t *testing.T) {
	withStores(t, func(t *testing.T, s store.History) {
		events, err := s.Events("ghost", 0)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("events = %+v, want none", events)
		}
		msgs, err := s.Messages("ghost", 0)
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("messages = %+v, want none", msgs)
		}
	})
}

func TestMemoryClock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := store.NewMemoryWithClock(func() time.Time { return fixed })

	if err := s.RecordEvent("lobby", model.EventJoin, "userid_0", ""); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	events, err := s.Events("lobby", 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || !events[0].CreatedAt.Equal(fixed) {
		t.Errorf("events = %+v, want created_at %v", events, fixed)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.RecordMessage("lobby", "userid_0", "alice", "still here"); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	msgs, err := s2.Messages("lobby", 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "still here" {
		t.Errorf("messages after reopen = %+v", msgs)
	}
}

func TestNopDiscardsEverything(t *testing.T) {
	var s store.History = store.Nop{}
	if err := s.RecordEvent("lobby", model.EventJoin, "userid_0", ""); err != nil {
		t.Errorf("RecordEvent: %v", err)
	}
	if err := s.RecordMessage("lobby", "userid_0", "alice", "into the void"); err != nil {
		t.Errorf("RecordMessage: %v", err)
	}
	events, _ := s.Events("lobby", 0)
	msgs, _ := s.Messages("lobby", 0)
	if len(events) != 0 || len(msgs) != 0 {
		t.Error("nop store retained data")
	}
}

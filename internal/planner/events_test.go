package planner_test

import (
	"testing"

	"github.com/p-n-ai/pai-mapper/internal/planner"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := planner.NewMemoryEventLogger()

	err := logger.LogEvent(planner.Event{
		SessionID: "sess-1",
		EventType: planner.EventSelectionChanged,
		Data: map[string]any{
			"objectives": 3,
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventType != planner.EventSelectionChanged {
		t.Errorf("EventType = %q, want %s", events[0].EventType, planner.EventSelectionChanged)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	logger := planner.NewMemoryEventLogger()

	if err := logger.LogEvent(planner.Event{SessionID: "sess-1"}); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := planner.NewPostgresEventLogger(nil)

	err := logger.LogEvent(planner.Event{
		SessionID: "sess-1",
		EventType: planner.EventSessionOpened,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
	if err := logger.EnsureSchema(t.Context()); err == nil {
		t.Fatal("expected EnsureSchema error for nil pool")
	}
}

package eventlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/creastat/assistant/core"
)

// testDSN returns a unique shared-memory DSN for test isolation.
func testDSN(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
}

func newTestStore(t *testing.T, cfg ...SQLiteConfig) *SQLiteStore {
	t.Helper()
	var c SQLiteConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}
	if c.DSN == "" {
		c.DSN = testDSN(t)
	}
	store, err := NewSQLiteStore(c)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_AppendList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ev := core.NewEvent(core.EventTextInput, "text_input", core.TextInputPayload{
			Text: fmt.Sprintf("message %d", i),
		})
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	events, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}

	// Verify round-trip fidelity. Payloads come back as generic JSON.
	e := events[0]
	if e.Type != core.EventTextInput {
		t.Errorf("Type = %q, want %q", e.Type, core.EventTextInput)
	}
	if e.Source != "text_input" {
		t.Errorf("Source = %q, want %q", e.Source, "text_input")
	}
	if e.CorrelationID != e.ID {
		t.Errorf("CorrelationID = %q, want %q", e.CorrelationID, e.ID)
	}
	payload, ok := e.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Payload is %T, want map[string]any", e.Payload)
	}
	if payload["Text"] != "message 0" {
		t.Errorf("payload text = %v, want %q", payload["Text"], "message 0")
	}
}

func TestSQLiteStore_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Append(ctx, core.NewEvent(core.EventTextInput, "text_input", core.TextInputPayload{Text: "a"}))
	_ = store.Append(ctx, core.NewEvent(core.EventNLPResponse, "nlp", core.NLPResponsePayload{Text: "b"}))
	_ = store.Append(ctx, core.NewEvent(core.EventNLPResponse, "nlp", core.NLPResponsePayload{Text: "c"}))

	events, err := store.List(ctx, Filter{Type: core.EventNLPResponse})
	if err != nil {
		t.Fatalf("List by type: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events by type, want 2", len(events))
	}

	events, err = store.List(ctx, Filter{Source: "text_input"})
	if err != nil {
		t.Fatalf("List by source: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events by source, want 1", len(events))
	}

	events, err = store.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("List with limit: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d limited events, want 1", len(events))
	}
}

func TestSQLiteStore_PruneByCount(t *testing.T) {
	store := newTestStore(t, SQLiteConfig{RetentionCount: 2, PruneInterval: time.Hour})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ev := core.NewEvent(core.EventSpeak, "nlp", core.SpeakPayload{Text: fmt.Sprintf("s%d", i)})
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	events, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events after prune, want 2", len(events))
	}
}

func TestSQLiteStore_PruneByAge(t *testing.T) {
	store := newTestStore(t, SQLiteConfig{RetentionAge: time.Minute, PruneInterval: time.Hour})
	ctx := context.Background()

	old := core.NewEvent(core.EventDisplayText, "display", core.DisplayTextPayload{Text: "old"})
	old.Time = time.Now().Add(-time.Hour)
	if err := store.Append(ctx, old); err != nil {
		t.Fatalf("Append old: %v", err)
	}
	if err := store.Append(ctx, core.NewEvent(core.EventDisplayText, "display", core.DisplayTextPayload{Text: "new"})); err != nil {
		t.Fatalf("Append new: %v", err)
	}

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	events, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events after prune, want 1", len(events))
	}
}

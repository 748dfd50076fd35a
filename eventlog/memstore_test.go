package eventlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/creastat/assistant/core"
)

func TestMemStore_AppendList(t *testing.T) {
	store := NewMemStore(10)
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

	first := events[0].Payload.(core.TextInputPayload)
	if first.Text != "message 0" {
		t.Errorf("first payload = %q, want %q", first.Text, "message 0")
	}
}

func TestMemStore_CapacityDiscardsOldest(t *testing.T) {
	store := NewMemStore(3)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ev := core.NewEvent(core.EventSpeak, "nlp", core.SpeakPayload{Text: "x"})
		ids = append(ids, ev.ID)
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	events, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.ID != ids[i+2] {
			t.Errorf("event %d = %q, want %q", i, ev.ID, ids[i+2])
		}
	}
}

func TestMemStore_FilterByTypeAndSource(t *testing.T) {
	store := NewMemStore(0)
	ctx := context.Background()

	_ = store.Append(ctx, core.NewEvent(core.EventTextInput, "text_input", core.TextInputPayload{Text: "a"}))
	_ = store.Append(ctx, core.NewEvent(core.EventNLPResponse, "nlp", core.NLPResponsePayload{Text: "b"}))
	_ = store.Append(ctx, core.NewEvent(core.EventNLPResponse, "vision", core.NLPResponsePayload{Text: "c"}))

	events, err := store.List(ctx, Filter{Type: core.EventNLPResponse})
	if err != nil {
		t.Fatalf("List by type: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events by type, want 2", len(events))
	}

	events, err = store.List(ctx, Filter{Type: core.EventNLPResponse, Source: "nlp"})
	if err != nil {
		t.Fatalf("List by type+source: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events by type+source, want 1", len(events))
	}
}

func TestMemStore_FilterSinceAndLimit(t *testing.T) {
	store := NewMemStore(0)
	ctx := context.Background()

	old := core.NewEvent(core.EventDisplayText, "display", core.DisplayTextPayload{Text: "old"})
	old.Time = time.Now().Add(-time.Hour)
	_ = store.Append(ctx, old)

	for i := 0; i < 3; i++ {
		_ = store.Append(ctx, core.NewEvent(core.EventDisplayText, "display", core.DisplayTextPayload{Text: "new"}))
	}

	events, err := store.List(ctx, Filter{Since: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("List since: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d recent events, want 3", len(events))
	}

	events, err = store.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d limited events, want 2", len(events))
	}
}

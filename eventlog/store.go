// Package eventlog persists bus events for inspection and replay.
package eventlog

import (
	"context"
	"time"

	"github.com/creastat/assistant/core"
)

// Filter narrows a List query. Zero values match everything.
type Filter struct {
	// Type restricts results to one event type.
	Type core.EventType

	// Source restricts results to events published by one component.
	Source string

	// Since restricts results to events at or after this instant.
	Since time.Time

	// Limit caps the number of returned events (0 means no limit).
	Limit int
}

// Store records published events in publication order.
type Store interface {
	// Append stores an event.
	Append(ctx context.Context, ev core.Event) error

	// List returns stored events matching the filter, oldest first.
	List(ctx context.Context, f Filter) ([]core.Event, error)

	// Close releases any resources held by the store.
	Close() error
}

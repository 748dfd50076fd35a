package eventlog

import (
	"context"
	"sync"

	"github.com/creastat/assistant/core"
)

// DefaultMemCapacity bounds the in-memory store when no capacity is given.
const DefaultMemCapacity = 1000

// MemStore is a thread-safe in-memory ring of recent events. When the
// ring is full the oldest event is discarded.
type MemStore struct {
	mu       sync.RWMutex
	events   []core.Event
	capacity int
}

// NewMemStore creates an in-memory store holding at most capacity events.
// A capacity of 0 or less uses DefaultMemCapacity.
func NewMemStore(capacity int) *MemStore {
	if capacity <= 0 {
		capacity = DefaultMemCapacity
	}
	return &MemStore{capacity: capacity}
}

func (s *MemStore) Append(_ context.Context, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
	if len(s.events) > s.capacity {
		// Shift rather than re-slice so the backing array does not pin
		// discarded events.
		copy(s.events, s.events[1:])
		s.events = s.events[:s.capacity]
	}
	return nil
}

func (s *MemStore) List(_ context.Context, f Filter) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []core.Event
	for _, ev := range s.events {
		if !matches(ev, f) {
			continue
		}
		result = append(result, ev)
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
	}
	return result, nil
}

func (s *MemStore) Close() error {
	return nil
}

func matches(ev core.Event, f Filter) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if f.Source != "" && ev.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && ev.Time.Before(f.Since) {
		return false
	}
	return true
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

package components

import (
	"sync"
	"time"

	"github.com/creastat/assistant/core"
)

// capturePublisher records published events for assertions
type capturePublisher struct {
	mu     sync.Mutex
	events []core.Event
}

func (p *capturePublisher) Publish(ev core.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return 1, nil
}

func (p *capturePublisher) all() []core.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.Event, len(p.events))
	copy(out, p.events)
	return out
}

// waitFor polls until the predicate over captured events holds or the
// timeout expires.
func (p *capturePublisher) waitFor(timeout time.Duration, pred func([]core.Event) bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pred(p.all()) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return pred(p.all())
}

func (p *capturePublisher) firstOfType(typ core.EventType) (core.Event, bool) {
	for _, ev := range p.all() {
		if ev.Type == typ {
			return ev, true
		}
	}
	return core.Event{}, false
}

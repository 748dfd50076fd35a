package assistant

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/google/uuid"

	"github.com/creastat/assistant/core"
	"github.com/creastat/assistant/eventlog"
)

// BackpressurePolicy decides what happens when a subscriber queue is full
type BackpressurePolicy string

const (
	// BackpressureDropOldest evicts the oldest queued event to make room.
	BackpressureDropOldest BackpressurePolicy = "drop_oldest"

	// BackpressureDropNewest discards the event being published.
	BackpressureDropNewest BackpressurePolicy = "drop_newest"

	// BackpressureBlock makes Publish wait up to BlockTimeout for room.
	BackpressureBlock BackpressurePolicy = "block"
)

const (
	// DefaultQueueSize bounds each subscriber queue.
	DefaultQueueSize = 256

	// DefaultBlockTimeout caps how long Publish waits under the block policy.
	DefaultBlockTimeout = time.Second

	// DefaultFailureThreshold is how many consecutive handler failures
	// mark a subscriber degraded.
	DefaultFailureThreshold = 3
)

// Handler processes one delivered event. A non-nil error counts toward
// the subscriber's consecutive failure tally.
type Handler func(ctx context.Context, ev core.Event) error

// EventFilter narrows a subscription to events it reports true for. A
// filter that panics lets the event through.
type EventFilter func(ev core.Event) bool

// BusConfig configures a Bus.
type BusConfig struct {
	// QueueSize bounds each subscriber's event queue (default 256).
	QueueSize int

	// Backpressure selects the full-queue policy (default drop oldest).
	Backpressure BackpressurePolicy

	// BlockTimeout caps the wait under BackpressureBlock (default 1s).
	BlockTimeout time.Duration

	// FailureThreshold is the consecutive failure count that marks a
	// subscriber degraded (default 3).
	FailureThreshold int

	// History records every published event when set.
	History eventlog.Store

	// Logger receives bus telemetry. Required.
	Logger telemetry.Logger

	// OnDegraded is invoked once when a subscriber crosses the failure
	// threshold. Called from the subscriber's dispatch goroutine.
	OnDegraded func(subscriberID string, failures int)

	// OnRecovered is invoked when a degraded subscriber's handler
	// succeeds again.
	OnRecovered func(subscriberID string)
}

// Bus routes published events to subscriber queues. Publish returns once
// every matching queue has accepted or refused the event; handlers run
// on per-subscriber dispatch goroutines, so one slow or failing handler
// never stalls another subscriber.
type Bus struct {
	cfg    BusConfig
	logger telemetry.Logger

	// mu is held for reading across the whole of Publish so Shutdown
	// cannot close a queue while an enqueue is in flight.
	mu          sync.RWMutex
	subscribers map[string]*subscriberState
	byType      map[core.EventType][]*subscription
	closed      bool

	published atomic.Uint64
	wg        sync.WaitGroup
}

// subscription ties one handler to one (subscriber, event type) pair
type subscription struct {
	handle       string
	subscriberID string
	eventType    core.EventType

	// mu guards handler and filter, which Subscribe may swap on
	// re-registration
	mu      sync.RWMutex
	handler Handler
	filter  EventFilter
	active  bool
}

func (s *subscription) getHandler() (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler, s.active
}

// matches applies the subscription filter. A panicking filter is treated
// as a pass so a broken predicate cannot silence its subscription.
func (s *subscription) matches(ev core.Event) (matched bool) {
	s.mu.RLock()
	filter := s.filter
	s.mu.RUnlock()
	if filter == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			matched = true
		}
	}()
	return filter(ev)
}

// subscriberState holds the bounded queue and dispatch bookkeeping for
// one subscriber id. All subscriptions of a subscriber share the queue,
// preserving publication order across event types.
type subscriberState struct {
	id    string
	queue chan queuedEvent

	// consecutiveFailures is touched only by the dispatch goroutine.
	consecutiveFailures int

	mu           sync.Mutex
	degraded     bool
	delivered    uint64
	dropped      uint64
	failures     uint64
	lastDelivery time.Time
}

type queuedEvent struct {
	ev  core.Event
	sub *subscription
}

// NewBus creates a bus with defaults applied to the zero fields of cfg.
func NewBus(cfg BusConfig) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Backpressure == "" {
		cfg.Backpressure = BackpressureDropOldest
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}

	return &Bus{
		cfg:         cfg,
		logger:      cfg.Logger.WithModule("bus"),
		subscribers: make(map[string]*subscriberState),
		byType:      make(map[core.EventType][]*subscription),
	}
}

// Subscribe registers handler for events of type typ on behalf of
// subscriberID and returns a subscription handle. Subscribing the same
// (subscriber, type) pair again replaces the handler in place and
// returns the original handle.
func (b *Bus) Subscribe(subscriberID string, typ core.EventType, handler Handler) (string, error) {
	return b.SubscribeFiltered(subscriberID, typ, handler, nil)
}

// SubscribeFiltered is Subscribe with an optional event predicate.
// Events the filter rejects are skipped at publish time and never enter
// the subscriber's queue.
func (b *Bus) SubscribeFiltered(subscriberID string, typ core.EventType, handler Handler, filter EventFilter) (string, error) {
	if subscriberID == "" {
		return "", ValidationError{Message: "subscribe failed", Details: "subscriber id is empty"}
	}
	if typ == "" {
		return "", ValidationError{Message: "subscribe failed", Details: "event type is empty"}
	}
	if handler == nil {
		return "", ValidationError{Message: "subscribe failed", Details: "handler is nil"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrBusClosed
	}

	// Replace in place when the pair is already subscribed.
	for _, sub := range b.byType[typ] {
		if sub.subscriberID == subscriberID {
			sub.mu.Lock()
			sub.handler = handler
			sub.filter = filter
			sub.active = true
			sub.mu.Unlock()
			b.logger.Warn("handler replaced for existing subscription",
				telemetry.String("subscriber", subscriberID),
				telemetry.String("event_type", string(typ)))
			return sub.handle, nil
		}
	}

	state, ok := b.subscribers[subscriberID]
	if !ok {
		state = &subscriberState{
			id:    subscriberID,
			queue: make(chan queuedEvent, b.cfg.QueueSize),
		}
		b.subscribers[subscriberID] = state
		b.wg.Add(1)
		go b.dispatchLoop(state)
	}

	sub := &subscription{
		handle:       uuid.NewString(),
		subscriberID: subscriberID,
		eventType:    typ,
		handler:      handler,
		filter:       filter,
		active:       true,
	}
	b.byType[typ] = append(b.byType[typ], sub)

	b.logger.Debug("subscription added",
		telemetry.String("subscriber", subscriberID),
		telemetry.String("event_type", string(typ)))

	return sub.handle, nil
}

// Unsubscribe deactivates the subscription for handle. The delivery
// currently in flight completes; queued events for the subscription are
// skipped at dequeue.
func (b *Bus) Unsubscribe(handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for typ, subs := range b.byType {
		for i, sub := range subs {
			if sub.handle != handle {
				continue
			}
			sub.mu.Lock()
			sub.active = false
			sub.mu.Unlock()
			b.byType[typ] = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unknown subscription handle %q", handle)
}

// CancelSubscriber deactivates every subscription held by subscriberID.
// The dispatch goroutine and queue stay alive until Shutdown so that a
// later re-subscribe reuses them.
func (b *Bus) CancelSubscriber(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for typ, subs := range b.byType {
		kept := subs[:0]
		for _, sub := range subs {
			if sub.subscriberID == subscriberID {
				sub.mu.Lock()
				sub.active = false
				sub.mu.Unlock()
				continue
			}
			kept = append(kept, sub)
		}
		b.byType[typ] = kept
	}
}

// Publish fans ev out to every queue subscribed to its type (plus
// wildcard subscriptions) and returns how many queues accepted it.
// It returns before any handler runs. Under BackpressureBlock a queue
// that stays full past BlockTimeout causes ErrDeliveryTimeout after
// the remaining queues were offered the event.
func (b *Bus) Publish(ev core.Event) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrBusClosed
	}

	subs := make([]*subscription, 0, len(b.byType[ev.Type])+len(b.byType[core.EventTypeWildcard]))
	subs = append(subs, b.byType[ev.Type]...)
	if ev.Type != core.EventTypeWildcard {
		// A subscriber holding both a concrete and a wildcard
		// subscription receives each event once; the concrete
		// subscription wins.
		for _, wc := range b.byType[core.EventTypeWildcard] {
			seen := false
			for _, sub := range subs {
				if sub.subscriberID == wc.subscriberID {
					seen = true
					break
				}
			}
			if !seen {
				subs = append(subs, wc)
			}
		}
	}

	states := make([]*subscriberState, len(subs))
	for i, sub := range subs {
		states[i] = b.subscribers[sub.subscriberID]
	}

	if b.cfg.History != nil {
		if err := b.cfg.History.Append(context.Background(), ev); err != nil {
			b.logger.Warn("event history append failed",
				telemetry.String("event_type", string(ev.Type)),
				telemetry.Err(err))
		}
	}

	b.published.Add(1)

	accepted := 0
	var timedOut []string
	for i, sub := range subs {
		if !sub.matches(ev) {
			continue
		}
		if b.enqueue(states[i], queuedEvent{ev: ev, sub: sub}) {
			accepted++
		} else if b.cfg.Backpressure == BackpressureBlock {
			timedOut = append(timedOut, sub.subscriberID)
		}
	}

	if len(timedOut) > 0 {
		return accepted, fmt.Errorf("%w: subscribers %v", ErrDeliveryTimeout, timedOut)
	}
	return accepted, nil
}

// enqueue applies the backpressure policy for one subscriber queue.
func (b *Bus) enqueue(state *subscriberState, qe queuedEvent) bool {
	select {
	case state.queue <- qe:
		return true
	default:
	}

	switch b.cfg.Backpressure {
	case BackpressureDropNewest:
		state.mu.Lock()
		state.dropped++
		state.mu.Unlock()
		b.logger.Warn("queue full, event dropped",
			telemetry.String("subscriber", state.id),
			telemetry.String("event_type", string(qe.ev.Type)),
			telemetry.String("policy", string(BackpressureDropNewest)))
		return false

	case BackpressureBlock:
		select {
		case state.queue <- qe:
			return true
		case <-time.After(b.cfg.BlockTimeout):
			state.mu.Lock()
			state.dropped++
			state.mu.Unlock()
			b.logger.Warn("queue full past block timeout, event dropped",
				telemetry.String("subscriber", state.id),
				telemetry.String("event_type", string(qe.ev.Type)))
			return false
		}

	default: // BackpressureDropOldest
		// Evict the oldest queued event, then retry. A concurrent
		// publisher may win the freed slot, so loop until ours lands.
		for {
			select {
			case old := <-state.queue:
				state.mu.Lock()
				state.dropped++
				state.mu.Unlock()
				b.logger.Warn("queue full, oldest event dropped",
					telemetry.String("subscriber", state.id),
					telemetry.String("dropped_type", string(old.ev.Type)),
					telemetry.String("policy", string(BackpressureDropOldest)))
			default:
			}
			select {
			case state.queue <- qe:
				return true
			default:
			}
		}
	}
}

// dispatchLoop drains one subscriber queue in FIFO order.
func (b *Bus) dispatchLoop(state *subscriberState) {
	defer b.wg.Done()

	for qe := range state.queue {
		handler, active := qe.sub.getHandler()
		if !active {
			continue
		}

		err := b.invoke(handler, qe)

		state.mu.Lock()
		state.delivered++
		state.lastDelivery = time.Now()
		if err != nil {
			state.failures++
		}
		state.mu.Unlock()

		if err != nil {
			state.consecutiveFailures++
			b.logger.Error("handler failed",
				telemetry.String("subscriber", state.id),
				telemetry.String("event_type", string(qe.ev.Type)),
				telemetry.Int("consecutive_failures", state.consecutiveFailures),
				telemetry.Err(err))

			if state.consecutiveFailures == b.cfg.FailureThreshold {
				state.mu.Lock()
				state.degraded = true
				state.mu.Unlock()
				b.logger.Warn("subscriber degraded",
					telemetry.String("subscriber", state.id),
					telemetry.Int("failures", state.consecutiveFailures))
				if b.cfg.OnDegraded != nil {
					b.cfg.OnDegraded(state.id, state.consecutiveFailures)
				}
			}
			continue
		}

		state.consecutiveFailures = 0
		state.mu.Lock()
		wasDegraded := state.degraded
		state.degraded = false
		state.mu.Unlock()
		if wasDegraded {
			b.logger.Info("subscriber recovered",
				telemetry.String("subscriber", state.id))
			if b.cfg.OnRecovered != nil {
				b.cfg.OnRecovered(state.id)
			}
		}
	}
}

// invoke runs a handler with panic recovery.
func (b *Bus) invoke(handler Handler, qe queuedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("handler for %q panicked: %v\nStack trace:\n%s",
				qe.sub.subscriberID, r, string(buf[:n]))
		}
	}()

	return handler(context.Background(), qe.ev)
}

// Replay re-delivers stored events matching f to handler, synchronously
// and in stored order. The bus must have been built with a History store.
func (b *Bus) Replay(ctx context.Context, f eventlog.Filter, handler Handler) error {
	if b.cfg.History == nil {
		return ValidationError{Message: "replay failed", Details: "bus has no history store"}
	}

	events, err := b.cfg.History.List(ctx, f)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	for _, ev := range events {
		if err := handler(ctx, ev); err != nil {
			return fmt.Errorf("replay handler for event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// SubscriberStats is a snapshot of one subscriber's delivery counters.
type SubscriberStats struct {
	Queued       int
	Delivered    uint64
	Dropped      uint64
	Failures     uint64
	Degraded     bool
	LastDelivery time.Time
}

// BusStats is a point-in-time snapshot of bus activity.
type BusStats struct {
	Published   uint64
	Subscribers map[string]SubscriberStats
}

// Stats returns a snapshot of publish and per-subscriber counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BusStats{
		Published:   b.published.Load(),
		Subscribers: make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, state := range b.subscribers {
		state.mu.Lock()
		stats.Subscribers[id] = SubscriberStats{
			Queued:       len(state.queue),
			Delivered:    state.delivered,
			Dropped:      state.dropped,
			Failures:     state.failures,
			Degraded:     state.degraded,
			LastDelivery: state.lastDelivery,
		}
		state.mu.Unlock()
	}
	return stats
}

// Shutdown stops accepting publications, drains the subscriber queues,
// and waits for dispatch goroutines to finish or ctx to expire.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, state := range b.subscribers {
		close(state.queue)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("bus shut down")
		return nil
	case <-ctx.Done():
		b.logger.Warn("bus shutdown abandoned undrained queues", telemetry.Err(ctx.Err()))
		return ctx.Err()
	}
}

// Compile-time interface check.
var _ core.Publisher = (*Bus)(nil)

package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/assistant/core"
	"github.com/creastat/assistant/eventlog"
)

// Manager owns component registration, ordered startup, health
// supervision, and ordered shutdown. Components start in dependency
// layers and stop in the exact reverse of the order they started.
type Manager struct {
	cfg     Config
	logger  telemetry.Logger
	bus     *Bus
	locator *ServiceLocator
	history eventlog.Store

	// lifecycleMu serializes Start, Stop, and Restart. mu guards the
	// component table and is never held across a blocking call.
	lifecycleMu sync.Mutex
	mu          sync.Mutex
	components  map[string]*managedComponent
	order       []string
	started     bool
	startedAt   time.Time

	stopHealth chan struct{}
	healthDone chan struct{}
}

// managedComponent pairs a component with its lifecycle bookkeeping
type managedComponent struct {
	comp    core.Component
	state   core.ComponentState
	handles []string
}

// NewManager builds a manager plus its bus, locator, and optional event
// history from cfg.
func NewManager(cfg Config, logger telemetry.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	history, err := buildHistory(cfg.History)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		logger:     logger.WithModule("lifecycle"),
		locator:    NewServiceLocator(),
		history:    history,
		components: make(map[string]*managedComponent),
	}

	m.bus = NewBus(BusConfig{
		QueueSize:        cfg.Bus.QueueSize,
		Backpressure:     BackpressurePolicy(cfg.Bus.Backpressure),
		BlockTimeout:     cfg.Bus.BlockTimeout,
		FailureThreshold: cfg.Bus.FailureThreshold,
		History:          history,
		Logger:           logger,
		OnDegraded:       m.markDegraded,
		OnRecovered:      m.markRecovered,
	})

	return m, nil
}

func buildHistory(s HistorySettings) (eventlog.Store, error) {
	switch s.Backend {
	case "memory":
		return eventlog.NewMemStore(s.Capacity), nil
	case "sqlite":
		return eventlog.NewSQLiteStore(eventlog.SQLiteConfig{
			DSN:            s.DSN,
			RetentionAge:   s.RetentionAge,
			RetentionCount: s.RetentionCount,
		})
	default:
		return nil, nil
	}
}

// Bus returns the manager's event bus
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Locator returns the manager's service locator
func (m *Manager) Locator() *ServiceLocator {
	return m.locator
}

// Register adds a component before Start. Names must be unique and every
// dependency must be registered by the time Start runs.
func (m *Manager) Register(c core.Component) error {
	if err := validateComponent(c); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if _, exists := m.components[c.Name()]; exists {
		return ValidationError{
			Message: "component registration failed",
			Details: fmt.Sprintf("component %q is already registered", c.Name()),
		}
	}

	m.components[c.Name()] = &managedComponent{comp: c, state: core.StateRegistered}
	m.logger.Debug("component registered",
		telemetry.String("component", c.Name()),
		telemetry.String("role", string(c.Role())))
	return nil
}

// Start validates the dependency graph and initializes every component
// in layered topological order. If any component fails to initialize,
// the components already started are shut down in reverse and the error
// is returned with nothing left running.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	comps := make(map[string]core.Component, len(m.components))
	for name, mc := range m.components {
		comps[name] = mc.comp
	}
	m.mu.Unlock()

	graph, err := buildGraph(comps)
	if err != nil {
		return err
	}
	layers, err := graph.Layers()
	if err != nil {
		return err
	}

	var achieved []string
	for _, layer := range layers {
		for _, name := range layer {
			if err := m.startComponent(ctx, name); err != nil {
				m.logger.Error("startup aborted, rolling back",
					telemetry.String("component", name),
					telemetry.Err(err))
				m.rollback(achieved)
				return InitializationError{Component: name, Err: err}
			}
			achieved = append(achieved, name)
		}
	}

	m.mu.Lock()
	m.order = achieved
	m.started = true
	m.startedAt = time.Now()
	m.mu.Unlock()

	if m.cfg.Lifecycle.HealthCheckInterval > 0 {
		m.stopHealth = make(chan struct{})
		m.healthDone = make(chan struct{})
		go m.healthLoop()
	}

	m.logger.Info("all components started",
		telemetry.Int("components", len(achieved)),
		telemetry.Int("layers", len(layers)))
	return nil
}

// startComponent initializes a single component and subscribes its
// declared event types.
func (m *Manager) startComponent(ctx context.Context, name string) error {
	m.mu.Lock()
	mc := m.components[name]
	mc.state = core.StateInitializing
	m.mu.Unlock()

	if aware, ok := mc.comp.(core.PublisherAware); ok {
		aware.SetPublisher(m.bus)
	}

	initCtx := ctx
	if m.cfg.Lifecycle.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, m.cfg.Lifecycle.InitTimeout)
		defer cancel()
	}

	// Initialize runs in its own goroutine so a component that ignores
	// its context cannot block Start past the deadline.
	done := make(chan error, 1)
	go func() { done <- mc.comp.Initialize(initCtx) }()

	var initErr error
	select {
	case initErr = <-done:
	case <-initCtx.Done():
		initErr = fmt.Errorf("%w: component %q", ErrInitTimeout, name)
	}
	if initErr != nil {
		m.mu.Lock()
		mc.state = core.StateFailed
		m.mu.Unlock()
		return initErr
	}

	handles, err := m.subscribeComponent(mc.comp)
	if err != nil {
		m.mu.Lock()
		mc.state = core.StateFailed
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	mc.handles = handles
	mc.state = core.StateRunning
	m.mu.Unlock()

	m.logger.Info("component started", telemetry.String("component", name))
	return nil
}

// subscribeComponent wires a component's declared subscriptions through
// an adapter that publishes any response event with the incoming event's
// correlation id.
func (m *Manager) subscribeComponent(c core.Component) ([]string, error) {
	var handles []string
	for _, typ := range c.Subscriptions() {
		handle, err := m.bus.Subscribe(c.Name(), typ, m.componentHandler(c))
		if err != nil {
			return handles, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func (m *Manager) componentHandler(c core.Component) Handler {
	return func(ctx context.Context, ev core.Event) error {
		resp, err := c.HandleEvent(ctx, ev)
		if err != nil {
			return err
		}
		if resp == nil {
			return nil
		}
		out := *resp
		if out.CorrelationID == "" || out.CorrelationID == out.ID {
			out.CorrelationID = ev.CorrelationID
		}
		if _, err := m.bus.Publish(out); err != nil {
			return fmt.Errorf("publish response from %q: %w", c.Name(), err)
		}
		return nil
	}
}

// rollback shuts down the given components in reverse start order.
func (m *Manager) rollback(achieved []string) {
	for i := len(achieved) - 1; i >= 0; i-- {
		name := achieved[i]
		if err := m.stopComponent(context.Background(), name); err != nil {
			m.logger.Error("rollback shutdown failed",
				telemetry.String("component", name),
				telemetry.Err(err))
		}
	}
}

// stopComponent cancels a component's subscriptions and shuts it down
// under the configured shutdown timeout.
func (m *Manager) stopComponent(ctx context.Context, name string) error {
	m.mu.Lock()
	mc, ok := m.components[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	mc.state = core.StateStopping
	m.mu.Unlock()

	m.bus.CancelSubscriber(name)

	stopCtx := ctx
	if m.cfg.Lifecycle.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(ctx, m.cfg.Lifecycle.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- mc.comp.Shutdown(stopCtx) }()

	var err error
	select {
	case err = <-done:
	case <-stopCtx.Done():
		err = fmt.Errorf("%w: component %q", ErrShutdownTimeout, name)
	}

	m.mu.Lock()
	if err != nil {
		mc.state = core.StateFailed
	} else {
		mc.state = core.StateStopped
	}
	mc.handles = nil
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.logger.Info("component stopped", telemetry.String("component", name))
	return nil
}

// Stop shuts every component down in the exact reverse of start order,
// then drains and closes the bus. A component that fails to stop is
// logged and the remaining components still stop.
func (m *Manager) Stop(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotRunning
	}
	order := make([]string, len(m.order))
	copy(order, m.order)
	m.mu.Unlock()

	if m.stopHealth != nil {
		close(m.stopHealth)
		<-m.healthDone
		m.stopHealth = nil
		m.healthDone = nil
	}

	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		if err := m.stopComponent(ctx, order[i]); err != nil {
			m.logger.Error("component shutdown failed",
				telemetry.String("component", order[i]),
				telemetry.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := m.bus.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if m.history != nil {
		if err := m.history.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.mu.Lock()
	m.started = false
	m.order = nil
	m.mu.Unlock()

	m.logger.Info("manager stopped")
	return firstErr
}

// Restart stops one running component and initializes it again, keeping
// its position in the shutdown order.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotRunning
	}
	_, ok := m.components[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}

	if err := m.stopComponent(ctx, name); err != nil {
		m.logger.Warn("restart: shutdown failed, initializing anyway",
			telemetry.String("component", name),
			telemetry.Err(err))
	}
	return m.startComponent(ctx, name)
}

// markDegraded flags a component after repeated handler failures. Its
// subscriptions stay active so a later success can clear the flag.
func (m *Manager) markDegraded(name string, failures int) {
	if m.degrade(name) {
		m.logger.Warn("component degraded",
			telemetry.String("component", name),
			telemetry.Int("consecutive_failures", failures))
	}
}

// degrade moves a running component to Degraded and reports whether the
// transition happened.
func (m *Manager) degrade(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.components[name]
	if !ok || mc.state != core.StateRunning {
		return false
	}
	mc.state = core.StateDegraded
	return true
}

func (m *Manager) markRecovered(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.components[name]
	if !ok || mc.state != core.StateDegraded {
		return
	}
	mc.state = core.StateRunning
	m.logger.Info("component recovered", telemetry.String("component", name))
}

// healthLoop polls HealthChecker components and publishes a periodic
// system status event.
func (m *Manager) healthLoop() {
	defer close(m.healthDone)

	ticker := time.NewTicker(m.cfg.Lifecycle.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopHealth:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Manager) checkHealth() {
	m.mu.Lock()
	type probe struct {
		name    string
		checker core.HealthChecker
	}
	var probes []probe
	for name, mc := range m.components {
		if mc.state != core.StateRunning && mc.state != core.StateDegraded {
			continue
		}
		if hc, ok := mc.comp.(core.HealthChecker); ok {
			probes = append(probes, probe{name, hc})
		}
	}
	m.mu.Unlock()

	for _, p := range probes {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := p.checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			if m.degrade(p.name) {
				m.logger.Warn("component degraded",
					telemetry.String("component", p.name),
					telemetry.String("reason", "health check failed"))
			}
			m.logger.Warn("health check failed",
				telemetry.String("component", p.name),
				telemetry.Err(err))
		} else {
			m.markRecovered(p.name)
		}
	}

	status := core.NewEvent(core.EventSystemStatus, "lifecycle", core.SystemStatusPayload{
		Components: m.Status(),
		Uptime:     m.Uptime(),
	})
	if _, err := m.bus.Publish(status); err != nil {
		m.logger.Debug("system status publish skipped", telemetry.Err(err))
	}
}

// Status returns the current state of every registered component.
func (m *Manager) Status() map[string]core.ComponentState {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]core.ComponentState, len(m.components))
	for name, mc := range m.components {
		states[name] = mc.state
	}
	return states
}

// ComponentState returns the state of one component.
func (m *Manager) ComponentState(name string) (core.ComponentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.components[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	return mc.state, nil
}

// Uptime reports how long the manager has been started, zero when stopped.
func (m *Manager) Uptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return 0
	}
	return time.Since(m.startedAt)
}

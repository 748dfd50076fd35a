package core

import "context"

// Role classifies what a component does with events
type Role string

const (
	RoleInput     Role = "input"
	RoleProcessor Role = "processor"
	RoleOutput    Role = "output"
	RoleAction    Role = "action"
)

// ComponentState is a point in the component lifecycle
type ComponentState string

const (
	StateRegistered   ComponentState = "registered"
	StateInitializing ComponentState = "initializing"
	StateRunning      ComponentState = "running"
	StateDegraded     ComponentState = "degraded"
	StateStopping     ComponentState = "stopping"
	StateStopped      ComponentState = "stopped"
	StateFailed       ComponentState = "failed"
)

// Component is the contract every managed unit implements. Initialize is
// called once before any events are delivered; Shutdown is called once
// and must release resources even when Initialize only partially
// succeeded.
type Component interface {
	Name() string
	Role() Role

	// Dependencies returns names of components that must be running
	// before this one starts.
	Dependencies() []string

	// Subscriptions returns the event types this component handles.
	// An empty slice means the component receives no events.
	Subscriptions() []EventType

	Initialize(ctx context.Context) error
	HandleEvent(ctx context.Context, ev Event) (*Event, error)
	Shutdown(ctx context.Context) error
}

// HealthChecker is implemented by components that can report liveness
// beyond handler success. The manager polls it between events.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Publisher emits events onto the bus. The returned count is the number
// of subscriber queues the event was accepted into.
type Publisher interface {
	Publish(ev Event) (int, error)
}

// PublisherAware components receive a Publisher before Initialize so
// they can emit events outside of HandleEvent.
type PublisherAware interface {
	SetPublisher(pub Publisher)
}

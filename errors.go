package assistant

import (
	"errors"
	"fmt"
)

// ValidationError represents a registration or graph validation error
type ValidationError struct {
	Message string
	Details string
}

func (e ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// ConfigurationError represents an invalid or missing configuration value
type ConfigurationError struct {
	Field   string
	Message string
}

func (e ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// InitializationError wraps a component's Initialize failure with the
// component name and the rollback outcome.
type InitializationError struct {
	Component string
	Err       error
}

func (e InitializationError) Error() string {
	return fmt.Sprintf("component %q failed to initialize: %v", e.Component, e.Err)
}

func (e InitializationError) Unwrap() error {
	return e.Err
}

var (
	// ErrBusClosed is returned by Publish and Subscribe after Shutdown.
	ErrBusClosed = errors.New("bus is closed")

	// ErrDeliveryTimeout is returned by Publish under the block policy
	// when a subscriber queue stays full past the block timeout.
	ErrDeliveryTimeout = errors.New("delivery timed out: subscriber queue full")

	// ErrAlreadyStarted is returned by Start on a running manager.
	ErrAlreadyStarted = errors.New("manager already started")

	// ErrNotRunning is returned by operations that require a started manager.
	ErrNotRunning = errors.New("manager is not running")

	// ErrUnknownComponent is returned when a name resolves to no
	// registered component.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrServiceNotFound is returned by the locator for unregistered names.
	ErrServiceNotFound = errors.New("service not found")

	// ErrInitTimeout reports that a component did not initialize within
	// its init deadline.
	ErrInitTimeout = errors.New("initialization timed out")

	// ErrShutdownTimeout reports that a component did not stop within
	// its shutdown deadline.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

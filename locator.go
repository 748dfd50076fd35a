package assistant

import (
	"fmt"
	"sort"
	"sync"
)

// ServiceLocator is a concurrent registry of shared services keyed by
// name. It hands out whatever was registered; construction order and
// wiring remain the caller's responsibility.
type ServiceLocator struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewServiceLocator creates an empty locator
func NewServiceLocator() *ServiceLocator {
	return &ServiceLocator{
		services: make(map[string]any),
	}
}

// Register stores a service under name. Re-registering a name replaces
// the previous value.
func (l *ServiceLocator) Register(name string, service any) error {
	if name == "" {
		return ValidationError{
			Message: "service registration failed",
			Details: "service name is empty",
		}
	}
	if service == nil {
		return ValidationError{
			Message: "service registration failed",
			Details: fmt.Sprintf("service %q is nil", name),
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.services[name] = service
	return nil
}

// Get returns the service registered under name.
func (l *ServiceLocator) Get(name string) (any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	service, ok := l.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	return service, nil
}

// Has reports whether a service is registered under name
func (l *ServiceLocator) Has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.services[name]
	return ok
}

// Remove deletes the service registered under name, if any
func (l *ServiceLocator) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.services, name)
}

// Names returns all registered service names, sorted
func (l *ServiceLocator) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.services))
	for name := range l.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve fetches a service by name and asserts its type.
func Resolve[T any](l *ServiceLocator, name string) (T, error) {
	var zero T

	service, err := l.Get(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service %q is %T, not %T", name, service, zero)
	}
	return typed, nil
}

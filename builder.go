package assistant

import (
	"fmt"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/assistant/core"
)

// Builder assembles a runtime with a fluent API: configuration,
// components, and shared services, validated together at Build time.
type Builder struct {
	cfg        Config
	cfgSet     bool
	logger     telemetry.Logger
	loggerSet  bool
	components []core.Component
	services   map[string]any
}

// NewBuilder creates a runtime builder
func NewBuilder() *Builder {
	return &Builder{
		services: make(map[string]any),
	}
}

// WithConfig sets the runtime configuration
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	b.cfgSet = true
	return b
}

// WithLogger sets the telemetry logger
func (b *Builder) WithLogger(logger telemetry.Logger) *Builder {
	b.logger = logger
	b.loggerSet = true
	return b
}

// AddComponent queues a component for registration
func (b *Builder) AddComponent(c core.Component) *Builder {
	b.components = append(b.components, c)
	return b
}

// AddService queues a shared service for the locator
func (b *Builder) AddService(name string, service any) *Builder {
	b.services[name] = service
	return b
}

// Build creates the manager, registers every queued component and
// service, and validates the dependency graph without starting anything.
func (b *Builder) Build() (*Manager, error) {
	if len(b.components) == 0 {
		return nil, fmt.Errorf("runtime must have at least one component")
	}

	cfg := b.cfg
	if !b.cfgSet {
		cfg = DefaultConfig()
	}
	logger := b.logger
	if !b.loggerSet {
		logger = telemetry.New(telemetry.Config{Level: cfg.LogLevel})
	}

	manager, err := NewManager(cfg, logger)
	if err != nil {
		return nil, err
	}

	for name, service := range b.services {
		if err := manager.Locator().Register(name, service); err != nil {
			return nil, fmt.Errorf("failed to register service %q: %w", name, err)
		}
	}

	for _, c := range b.components {
		if err := manager.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register component: %w", err)
		}
	}

	// Surface dependency problems now rather than at Start.
	comps := make(map[string]core.Component, len(b.components))
	for _, c := range b.components {
		comps[c.Name()] = c
	}
	if _, err := buildGraph(comps); err != nil {
		return nil, err
	}

	return manager, nil
}

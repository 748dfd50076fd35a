package assistant

import (
	"fmt"

	"github.com/creastat/assistant/core"
)

// validateComponent checks a single component before registration
func validateComponent(c core.Component) error {
	if c == nil {
		return ValidationError{
			Message: "component validation failed",
			Details: "component is nil",
		}
	}
	if c.Name() == "" {
		return ValidationError{
			Message: "component validation failed",
			Details: "component name is empty",
		}
	}
	switch c.Role() {
	case core.RoleInput, core.RoleProcessor, core.RoleOutput, core.RoleAction:
	default:
		return ValidationError{
			Message: "component validation failed",
			Details: fmt.Sprintf("component %q has unknown role %q", c.Name(), c.Role()),
		}
	}
	return nil
}

// buildGraph assembles the dependency graph for a set of components,
// rejecting references to unregistered names and dependency cycles.
func buildGraph(components map[string]core.Component) (*DependencyGraph, error) {
	graph := NewDependencyGraph()

	for name := range components {
		if err := graph.AddNode(name); err != nil {
			return nil, ValidationError{
				Message: "dependency validation failed",
				Details: err.Error(),
			}
		}
	}

	for name, c := range components {
		for _, dep := range c.Dependencies() {
			if dep == name {
				return nil, ValidationError{
					Message: "dependency validation failed",
					Details: fmt.Sprintf("component %q depends on itself", name),
				}
			}
			if !graph.HasNode(dep) {
				return nil, ValidationError{
					Message: "dependency validation failed",
					Details: fmt.Sprintf("component %q depends on unregistered component %q", name, dep),
				}
			}
			if err := graph.AddDependency(name, dep); err != nil {
				return nil, ValidationError{
					Message: "dependency validation failed",
					Details: err.Error(),
				}
			}
		}
	}

	// Layers reports cycles with the offending path.
	if _, err := graph.Layers(); err != nil {
		return nil, err
	}

	return graph, nil
}

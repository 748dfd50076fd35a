package assistant

import (
	"fmt"
	"sort"
	"strings"
)

// DependencyGraph represents the component dependency topology as a
// directed acyclic graph. An edge from A to B means B depends on A, so A
// must start first.
type DependencyGraph struct {
	// nodes maps component names to their graph node representations
	nodes map[string]*graphNode
}

// graphNode represents a component in the dependency graph
type graphNode struct {
	// name is the unique identifier for this node
	name string

	// dependents are nodes that depend on this one
	dependents []*graphNode

	// dependencies are nodes this one depends on
	dependencies []*graphNode
}

// NewDependencyGraph creates a new empty dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*graphNode),
	}
}

// AddNode adds a component node to the graph
func (dg *DependencyGraph) AddNode(name string) error {
	if _, exists := dg.nodes[name]; exists {
		return fmt.Errorf("node %q already exists in graph", name)
	}

	dg.nodes[name] = &graphNode{name: name}
	return nil
}

// AddDependency records that dependent requires dependency to be running
// first. Both nodes must already exist.
func (dg *DependencyGraph) AddDependency(dependent, dependency string) error {
	depNode, exists := dg.nodes[dependent]
	if !exists {
		return fmt.Errorf("node %q does not exist", dependent)
	}

	reqNode, exists := dg.nodes[dependency]
	if !exists {
		return fmt.Errorf("dependency %q of %q does not exist", dependency, dependent)
	}

	reqNode.dependents = append(reqNode.dependents, depNode)
	depNode.dependencies = append(depNode.dependencies, reqNode)
	return nil
}

// HasNode reports whether a component name is in the graph
func (dg *DependencyGraph) HasNode(name string) bool {
	_, exists := dg.nodes[name]
	return exists
}

// AllNodes returns all node names in the graph, sorted for determinism
func (dg *DependencyGraph) AllNodes() []string {
	names := make([]string, 0, len(dg.nodes))
	for name := range dg.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layers computes a layered topological order using Kahn's algorithm.
// Every component in a layer depends only on components in earlier
// layers, so components within one layer can start concurrently.
// Returns an error if the graph contains a cycle.
func (dg *DependencyGraph) Layers() ([][]string, error) {
	indegree := make(map[string]int, len(dg.nodes))
	for name, node := range dg.nodes {
		indegree[name] = len(node.dependencies)
	}

	var current []string
	for name, deg := range indegree {
		if deg == 0 {
			current = append(current, name)
		}
	}

	var layers [][]string
	placed := 0
	for len(current) > 0 {
		sort.Strings(current)
		layers = append(layers, current)
		placed += len(current)

		var next []string
		for _, name := range current {
			for _, dep := range dg.nodes[name].dependents {
				indegree[dep.name]--
				if indegree[dep.name] == 0 {
					next = append(next, dep.name)
				}
			}
		}
		current = next
	}

	if placed != len(dg.nodes) {
		cycle := dg.findCycle()
		return nil, ValidationError{
			Message: "dependency validation failed",
			Details: fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")),
		}
	}

	return layers, nil
}

// findCycle locates one cycle via depth-first search and returns the
// component names along it, with the starting node repeated at the end.
func (dg *DependencyGraph) findCycle() []string {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	var path []string

	var dfs func(node *graphNode) []string
	dfs = func(node *graphNode) []string {
		visited[node.name] = true
		recStack[node.name] = true
		path = append(path, node.name)

		for _, dep := range node.dependents {
			if !visited[dep.name] {
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			} else if recStack[dep.name] {
				// Back edge found. Trim the path to the cycle entry point.
				for i, name := range path {
					if name == dep.name {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, dep.name)
					}
				}
			}
		}

		recStack[node.name] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range dg.AllNodes() {
		if !visited[name] {
			if cycle := dfs(dg.nodes[name]); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

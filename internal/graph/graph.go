// SPDX-License-Identifier: MPL-2.0

// Package graph provides dependency-order and cycle diagnostics over a
// discovered module registry. The loader itself never needs a topological
// order (its fixpoint passes converge regardless), but a linear order is the
// clearest way to show users how their modules relate, and naming the exact
// cycle beats a generic unresolved-dependency failure.
package graph

import (
	"fmt"
	"strings"

	"fibr-cli/internal/module"
)

type (
	// CycleError names modules whose dependencies form a cycle.
	CycleError struct {
		// Cycle holds the modules involved, enough to identify the problem.
		Cycle []module.ID
	}

	// Graph is the directed dependency graph of a module registry. An edge
	// from A to B means A must load before B.
	Graph struct {
		// adjacency maps each module to its dependents.
		adjacency map[module.ID][]module.ID
		// nodes preserves discovery order for deterministic output.
		nodes   []module.ID
		nodeSet map[module.ID]bool
	}
)

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		names[i] = id.String()
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(names, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[module.ID][]module.ID),
		nodeSet:   make(map[module.ID]bool),
	}
}

// FromRegistry builds the dependency graph of every registered module. Edges
// to undeclared dependency IDs are included so ordering surfaces them too.
func FromRegistry(reg *module.Registry) *Graph {
	g := New()
	for _, m := range reg.All() {
		g.AddNode(m.ID)
		for _, dep := range m.Deps {
			g.AddEdge(dep, m.ID)
		}
	}
	return g
}

// AddNode adds a module to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(id module.ID) {
	if g.nodeSet[id] {
		return
	}
	g.nodeSet[id] = true
	g.nodes = append(g.nodes, id)
}

// AddEdge records that from must load before to, implicitly adding both.
func (g *Graph) AddEdge(from, to module.ID) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Dependents returns the modules that depend on id, in edge insertion order.
func (g *Graph) Dependents(id module.ID) []module.ID {
	out := make([]module.ID, len(g.adjacency[id]))
	copy(out, g.adjacency[id])
	return out
}

// LoadOrder returns a valid load order using Kahn's algorithm, deterministic
// for a given insertion order. Returns CycleError when the graph has a
// cycle, naming the modules still blocked.
func (g *Graph) LoadOrder() ([]module.ID, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[module.ID]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, dependents := range g.adjacency {
		for _, dep := range dependents {
			inDegree[dep]++
		}
	}

	queue := make([]module.ID, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var order []module.ID
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dep := range g.adjacency[node] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var cycle []module.ID
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycle = append(cycle, node)
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}

	return order, nil
}

// Package graph provides the subtask dependency graph the scheduler
// executes. Nodes are subtasks, and edges represent "depends on"
// relationships.
package graph

import (
	"sort"
	"sync"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// DAG is a directed acyclic graph of subtask dependencies built from one
// decomposition pass.
type DAG struct {
	mu sync.RWMutex
	// nodes maps subtask ID to the subtask itself.
	nodes map[string]*models.Subtask
	// edges maps subtask ID to IDs of subtasks it depends on.
	edges map[string][]string
	// completed tracks which subtasks have produced output.
	completed map[string]bool
}

// New creates a new empty dependency graph.
func New() *DAG {
	return &DAG{
		nodes:     make(map[string]*models.Subtask),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
	}
}

// Build constructs the dependency graph from a slice of subtasks and
// validates it. Returns *InvalidGraphError if the graph is empty, an edge
// references an unknown node, there is no entry node, or a cycle exists.
func Build(subtasks []*models.Subtask) (*DAG, error) {
	g := New()

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(subtasks) == 0 {
		return nil, invalid(ErrEmptyGraph, "")
	}

	for _, st := range subtasks {
		if _, exists := g.nodes[st.ID]; exists {
			return nil, invalid(ErrDuplicateNode, st.ID)
		}
		g.nodes[st.ID] = st
		g.edges[st.ID] = nil
	}

	for _, st := range subtasks {
		for _, depID := range st.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return nil, invalid(ErrDanglingEdge, st.ID+" -> "+depID)
			}
			g.edges[st.ID] = append(g.edges[st.ID], depID)
		}
	}

	if !g.hasEntryNodeLocked() {
		return nil, invalid(ErrNoEntryNode, "")
	}
	if g.hasCycleLocked() {
		return nil, invalid(ErrCycleDetected, "")
	}
	return g, nil
}

// hasEntryNodeLocked reports whether any node has no dependencies.
// Caller must hold g.mu.
func (g *DAG) hasEntryNodeLocked() bool {
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			return true
		}
	}
	return false
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DAG) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked detects back edges with depth-first search coloring.
// Caller must hold g.mu.
func (g *DAG) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns subtask IDs in an order where all dependencies
// come before the subtasks that depend on them. Sibling order is
// deterministic: ties break by ascending ID.
func (g *DAG) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, invalid(ErrCycleDetected, "")
	}

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		deps := append([]string(nil), g.edges[id]...)
		sort.Strings(deps)
		for _, depID := range deps {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedIDsLocked() {
		visit(id)
	}
	return result, nil
}

// GetReady returns the IDs of subtasks whose dependencies are all complete
// and which have not completed themselves, in ascending ID order.
func (g *DAG) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id := range g.nodes {
		if g.completed[id] {
			continue
		}
		allDepsComplete := true
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			ready = append(ready, id)
		}
	}

	sort.Strings(ready)
	return ready
}

// MarkComplete marks a subtask as completed, unblocking its dependents in
// subsequent GetReady calls.
func (g *DAG) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[id] = true
}

// Node returns the subtask for a given ID, or nil if not found.
func (g *DAG) Node(id string) *models.Subtask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of subtasks in the graph.
func (g *DAG) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of subtasks the given subtask depends on.
func (g *DAG) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Edges returns every dependency edge in the graph, sorted for stable
// display.
func (g *DAG) Edges() []models.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []models.Edge
	for id, deps := range g.edges {
		for _, depID := range deps {
			out = append(out, models.Edge{From: depID, To: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Subtasks returns the nodes in ascending ID order.
func (g *DAG) Subtasks() []*models.Subtask {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*models.Subtask, 0, len(g.nodes))
	for _, id := range g.sortedIDsLocked() {
		out = append(out, g.nodes[id])
	}
	return out
}

// sortedIDsLocked returns all node IDs ascending. Caller must hold g.mu.
func (g *DAG) sortedIDsLocked() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

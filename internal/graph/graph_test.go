package graph

import (
	"errors"
	"testing"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

func node(id string, deps ...string) *models.Subtask {
	return &models.Subtask{
		ID:          id,
		Domain:      models.DomainCommonsense,
		Description: "subtask " + id,
		DependsOn:   deps,
	}
}

func TestBuildValidatesStructure(t *testing.T) {
	tests := []struct {
		name     string
		subtasks []*models.Subtask
		defect   error
	}{
		{"empty", nil, ErrEmptyGraph},
		{"duplicate id", []*models.Subtask{node("n1"), node("n1")}, ErrDuplicateNode},
		{"dangling edge", []*models.Subtask{node("n1", "ghost")}, ErrDanglingEdge},
		{"no entry node", []*models.Subtask{node("n1", "n2"), node("n2", "n1")}, ErrNoEntryNode},
		{"cycle", []*models.Subtask{node("n1"), node("n2", "n3"), node("n3", "n2")}, ErrCycleDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.subtasks)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var gerr *InvalidGraphError
			if !errors.As(err, &gerr) {
				t.Fatalf("expected *InvalidGraphError, got %T", err)
			}
			if !errors.Is(err, tt.defect) {
				t.Errorf("expected defect %v, got %v", tt.defect, err)
			}
		})
	}
}

func TestBuildAcceptsValidGraph(t *testing.T) {
	g, err := Build([]*models.Subtask{
		node("n1"),
		node("n2", "n1"),
		node("n3", "n1"),
		node("n4", "n2", "n3"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.Size())
	}
	if g.HasCycle() {
		t.Error("valid graph reported a cycle")
	}
}

func TestTopologicalSort(t *testing.T) {
	g, err := Build([]*models.Subtask{
		node("n4", "n2", "n3"),
		node("n2", "n1"),
		node("n3", "n1"),
		node("n1"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, edge := range [][2]string{{"n1", "n2"}, {"n1", "n3"}, {"n2", "n4"}, {"n3", "n4"}} {
		if pos[edge[0]] > pos[edge[1]] {
			t.Errorf("%s must come before %s, got order %v", edge[0], edge[1], order)
		}
	}

	// Ties break by ascending id, so the full order is fixed.
	want := []string{"n1", "n2", "n3", "n4"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("expected deterministic order %v, got %v", want, order)
		}
	}
}

func TestGetReadyWaves(t *testing.T) {
	g, err := Build([]*models.Subtask{
		node("n1"),
		node("n2"),
		node("n3", "n1", "n2"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 2 || ready[0] != "n1" || ready[1] != "n2" {
		t.Fatalf("expected [n1 n2] ready, got %v", ready)
	}

	// n3 stays blocked until both dependencies complete.
	g.MarkComplete("n1")
	if ready := g.GetReady(); len(ready) != 1 || ready[0] != "n2" {
		t.Fatalf("expected only n2 ready, got %v", ready)
	}

	g.MarkComplete("n2")
	if ready := g.GetReady(); len(ready) != 1 || ready[0] != "n3" {
		t.Fatalf("expected [n3] ready, got %v", ready)
	}

	g.MarkComplete("n3")
	if ready := g.GetReady(); len(ready) != 0 {
		t.Fatalf("expected nothing ready, got %v", ready)
	}
}

func TestEdges(t *testing.T) {
	g, err := Build([]*models.Subtask{
		node("n1"),
		node("n2", "n1"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edges := g.Edges()
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].From != "n1" || edges[0].To != "n2" {
		t.Errorf("expected n1 -> n2, got %s -> %s", edges[0].From, edges[0].To)
	}
}

package scheduler

import (
	"sync"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// ExecutionState collects per-node outputs as the scheduler executes a
// DAG. It is owned by exactly one Execute call and discarded after merge.
type ExecutionState struct {
	mu      sync.Mutex
	outputs map[string]models.NodeOutput
	// order is the deterministic dispatch order: waves of ready nodes,
	// ascending id within each wave.
	order []string
}

// newExecutionState creates an empty state sized for n nodes.
func newExecutionState(n int) *ExecutionState {
	return &ExecutionState{
		outputs: make(map[string]models.NodeOutput, n),
	}
}

// record stores one node's output slot.
func (s *ExecutionState) record(out models.NodeOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[out.NodeID] = out
}

// appendOrder fixes the dispatch position of a node.
func (s *ExecutionState) appendOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, id)
}

// Get returns the output slot for a node id.
func (s *ExecutionState) Get(id string) (models.NodeOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[id]
	return out, ok
}

// Outputs returns all node outputs in execution order.
func (s *ExecutionState) Outputs() []models.NodeOutput {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.NodeOutput, 0, len(s.order))
	for _, id := range s.order {
		if o, ok := s.outputs[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Order returns the execution order of node ids.
func (s *ExecutionState) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// FailureCount returns how many slots hold the failure sentinel.
func (s *ExecutionState) FailureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, out := range s.outputs {
		if out.IsFailure() {
			n++
		}
	}
	return n
}

// Package scheduler executes a validated task graph in dependency order,
// running each wave of ready nodes concurrently under a fixed inflight cap.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/polyflow-ai/polyflow/internal/agent"
	"github.com/polyflow-ai/polyflow/internal/graph"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

// Runner executes a single subtask given the outputs of its dependencies.
type Runner interface {
	Run(ctx context.Context, node *models.Subtask, predecessors []agent.ContextEntry) (string, error)
}

// NodeHook is called as nodes start and finish, for progress display.
type NodeHook func(node *models.Subtask, out *models.NodeOutput)

// Scheduler walks a DAG wave by wave. Nodes whose runner fails still
// complete with a sentinel output so downstream work is never orphaned.
type Scheduler struct {
	runner      Runner
	maxInflight int
	logger      *slog.Logger

	onStart  NodeHook
	onFinish NodeHook
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxInflight caps how many nodes run concurrently. Values below 1
// fall back to 1.
func WithMaxInflight(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxInflight = n
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNodeHooks registers start/finish callbacks. Either may be nil.
func WithNodeHooks(onStart, onFinish NodeHook) Option {
	return func(s *Scheduler) {
		s.onStart = onStart
		s.onFinish = onFinish
	}
}

// New creates a scheduler around a runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:      runner,
		maxInflight: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs every node of the DAG and returns the collected outputs.
// The graph is validated up front; a structurally invalid graph returns
// a *graph.InvalidGraphError and no node runs.
//
// Execution is deterministic: ready nodes are dispatched in ascending id
// order, and a wave fully completes before the next one is computed.
func (s *Scheduler) Execute(ctx context.Context, dag *graph.DAG) (*ExecutionState, error) {
	order, err := dag.TopologicalSort()
	if err != nil {
		return nil, err
	}

	state := newExecutionState(len(order))
	sem := make(chan struct{}, s.maxInflight)
	done := 0

	for done < len(order) {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		ready := dag.GetReady()
		if len(ready) == 0 {
			// Cannot happen on a validated DAG; guard against a stall.
			return state, fmt.Errorf("scheduler stalled with %d of %d nodes complete", done, len(order))
		}
		sort.Strings(ready)

		s.logger.Debug("dispatching wave", "nodes", ready, "completed", done, "total", len(order))

		var wg sync.WaitGroup
		for _, id := range ready {
			node := dag.Node(id)
			state.appendOrder(id)

			wg.Add(1)
			sem <- struct{}{}
			go func(node *models.Subtask) {
				defer wg.Done()
				defer func() { <-sem }()
				s.runNode(ctx, dag, node, state)
			}(node)
		}
		wg.Wait()

		for _, id := range ready {
			dag.MarkComplete(id)
		}
		done += len(ready)
	}

	return state, nil
}

// runNode executes one node and records its output. Runner failures are
// absorbed as a sentinel output rather than aborting the run.
func (s *Scheduler) runNode(ctx context.Context, dag *graph.DAG, node *models.Subtask, state *ExecutionState) {
	if s.onStart != nil {
		s.onStart(node, nil)
	}

	preds := s.gatherPredecessors(dag, node, state)

	text, err := s.runner.Run(ctx, node, preds)
	if err != nil {
		s.logger.Warn("node failed, recording sentinel",
			"node", node.ID, "domain", node.Domain, "error", err)
		text = models.FailureSentinel
	}

	out := models.NodeOutput{NodeID: node.ID, Domain: node.Domain, Text: text}
	state.record(out)

	if s.onFinish != nil {
		s.onFinish(node, &out)
	}
}

// gatherPredecessors collects dependency outputs in ascending id order.
// A dependency that failed contributes its sentinel text unchanged so
// the agent can see that the upstream step produced nothing usable.
func (s *Scheduler) gatherPredecessors(dag *graph.DAG, node *models.Subtask, state *ExecutionState) []agent.ContextEntry {
	deps := dag.Dependencies(node.ID)
	sort.Strings(deps)

	entries := make([]agent.ContextEntry, 0, len(deps))
	for _, dep := range deps {
		if out, ok := state.Get(dep); ok {
			entries = append(entries, agent.ContextEntry{NodeID: dep, Text: out.Text})
		}
	}
	return entries
}

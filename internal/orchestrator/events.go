// Package orchestrator drives the decompose, execute, evaluate loop that
// turns a user task into a final answer.
package orchestrator

import (
	"time"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has begun.
	EventRunStarted EventType = "run_started"
	// EventIterationStarted indicates a refinement iteration has begun.
	EventIterationStarted EventType = "iteration_started"
	// EventDecomposed indicates the task was split into a subtask graph.
	EventDecomposed EventType = "decomposed"
	// EventNodeStarted indicates a subtask node began executing.
	EventNodeStarted EventType = "node_started"
	// EventNodeFinished indicates a subtask node finished, possibly with
	// a failure sentinel as its output.
	EventNodeFinished EventType = "node_finished"
	// EventEvaluated indicates the merged answer was judged.
	EventEvaluated EventType = "evaluated"
	// EventRunDone indicates the run terminated.
	EventRunDone EventType = "run_done"
)

// Event is emitted by the orchestrator as a run progresses. The TUI
// consumes these to render live progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run this event belongs to.
	RunID string
	// Iteration is the 1-based refinement iteration, if applicable.
	Iteration int
	// NodeID is the related subtask node, if applicable.
	NodeID string
	// Domain is the node's domain, if applicable.
	Domain models.Domain
	// Message provides additional context about the event.
	Message string
	// Failed marks a node that produced a failure sentinel.
	Failed bool
	// NodeCount is the graph size for decomposed events.
	NodeCount int
	// Complete carries the evaluation verdict for evaluated events.
	Complete bool
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

package graph

import (
	"errors"
	"fmt"
)

// Structural defects that make a DAG unexecutable. Each is a distinct
// variant so the orchestration loop can report what went wrong when it
// re-decomposes.
var (
	// ErrCycleDetected indicates a circular dependency was found.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrEmptyGraph indicates a decomposition with no subtasks.
	ErrEmptyGraph = errors.New("graph has no nodes")
	// ErrDuplicateNode indicates two subtasks share an ID.
	ErrDuplicateNode = errors.New("duplicate node id")
	// ErrDanglingEdge indicates an edge endpoint not present in the graph.
	ErrDanglingEdge = errors.New("edge references unknown node")
	// ErrNoEntryNode indicates every node has at least one dependency.
	ErrNoEntryNode = errors.New("graph has no entry node")
)

// InvalidGraphError wraps one of the structural defect variants. It is
// fatal for the current iteration only: the orchestration loop counts it
// against the retry budget and re-decomposes with structural feedback.
type InvalidGraphError struct {
	// Defect is the structural variant (one of the sentinel errors above).
	Defect error
	// Detail names the offending node or edge, when known.
	Detail string
}

func (e *InvalidGraphError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid graph: %v (%s)", e.Defect, e.Detail)
	}
	return fmt.Sprintf("invalid graph: %v", e.Defect)
}

func (e *InvalidGraphError) Unwrap() error {
	return e.Defect
}

func invalid(defect error, detail string) *InvalidGraphError {
	return &InvalidGraphError{Defect: defect, Detail: detail}
}

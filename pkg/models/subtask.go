package models

// Subtask is a single unit of work produced by one decomposition pass.
// Node ids are unique within a decomposition but not stable across
// refinement iterations.
type Subtask struct {
	// ID is the unique identifier within one decomposition (e.g., "task1").
	ID string `json:"id"`
	// Domain classifies which domain agent handles this subtask.
	Domain Domain `json:"domain"`
	// Description is the imperative task text given to the agent.
	Description string `json:"description"`
	// DependsOn lists subtask IDs whose outputs this subtask consumes.
	DependsOn []string `json:"depends_on,omitempty"`
}

// Edge is a single dependency in a DAG: To depends on the output of From.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NodeOutput is one executed node's contribution to a merged result.
type NodeOutput struct {
	// NodeID is the subtask id that produced this output.
	NodeID string `json:"node_id"`
	// Domain is the domain of the producing subtask.
	Domain Domain `json:"domain"`
	// Text is the raw model output, or the failure sentinel.
	Text string `json:"text"`
}

// FailureSentinel is the placeholder written into a node's output slot when
// its inference call fails. Downstream merge and evaluation proceed; the
// evaluator treats its presence as a partial failure.
const FailureSentinel = "[AGENT_FAILURE]"

// IsFailure reports whether the output slot holds the failure sentinel.
func (o NodeOutput) IsFailure() bool {
	return o.Text == FailureSentinel
}

package models

import "time"

// Reason explains why an orchestration run terminated.
type Reason string

const (
	// ReasonCompleted means the evaluator accepted the merged answer.
	ReasonCompleted Reason = "completed"
	// ReasonMaxRetry means the retry budget ran out before acceptance.
	ReasonMaxRetry Reason = "max_retry_reached"
	// ReasonException means an unhandled failure aborted the run.
	ReasonException Reason = "exception"
)

// Valid returns true if the reason is a known value.
func (r Reason) Valid() bool {
	switch r {
	case ReasonCompleted, ReasonMaxRetry, ReasonException:
		return true
	default:
		return false
	}
}

// Result is the terminal outcome of one orchestration run.
// FinalAnswer is best-effort: the accepted answer on success, the last
// merged result when the retry budget is exhausted, and possibly empty
// only when the very first decomposition fails.
type Result struct {
	// RunID uniquely identifies this orchestration run.
	RunID string `json:"run_id"`
	// Task is the original user task.
	Task string `json:"task"`
	// UserID identifies the caller, when provided.
	UserID string `json:"user_id,omitempty"`
	// Success is true only when the evaluator accepted the answer.
	Success bool `json:"success"`
	// FinalAnswer is the best available answer text.
	FinalAnswer string `json:"final_answer"`
	// Iterations is the number of decompose-schedule-evaluate passes run.
	Iterations int `json:"iterations"`
	// Reason is the termination reason code.
	Reason Reason `json:"reason"`
	// Err holds the failure detail when Reason is ReasonException.
	Err string `json:"error,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run terminated.
	FinishedAt time.Time `json:"finished_at"`
}

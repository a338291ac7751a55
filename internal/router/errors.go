package router

import (
	"errors"
	"fmt"
)

// Defect variants for a decomposition the model could not produce in valid
// form. Each kind is distinct so the orchestration loop can decide
// retry-vs-abort per failure kind rather than on a generic parse error.
var (
	// ErrUnparseable indicates the structured output was not valid JSON.
	ErrUnparseable = errors.New("structured output is not valid JSON")
	// ErrEmptyDecomposition indicates the model returned no subtasks.
	ErrEmptyDecomposition = errors.New("decomposition contains no subtasks")
	// ErrDuplicateID indicates two subtasks share an id.
	ErrDuplicateID = errors.New("duplicate subtask id")
	// ErrUnknownDomain indicates a domain name with no canonical mapping.
	ErrUnknownDomain = errors.New("unknown domain name")
	// ErrUnknownDependency indicates a dependency on a nonexistent id.
	ErrUnknownDependency = errors.New("dependency references unknown subtask")
	// ErrSelfDependency indicates a subtask depending on itself.
	ErrSelfDependency = errors.New("subtask depends on itself")
	// ErrMissingField indicates a subtask without id, domain, or content.
	ErrMissingField = errors.New("subtask is missing a required field")
)

// DecompositionError reports that the decomposer exhausted its structured-
// output attempts without producing a valid DAG. Fatal for the whole run:
// a broken decomposition will not self-correct without feedback the loop
// does not yet have.
type DecompositionError struct {
	// Attempts is how many structured-output attempts were made.
	Attempts int
	// Defect is the last validation defect observed.
	Defect error
	// Detail names the offending subtask or field, when known.
	Detail string
}

func (e *DecompositionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("decomposition failed after %d attempts: %v (%s)", e.Attempts, e.Defect, e.Detail)
	}
	return fmt.Sprintf("decomposition failed after %d attempts: %v", e.Attempts, e.Defect)
}

func (e *DecompositionError) Unwrap() error {
	return e.Defect
}

// validationError is a single failed attempt's defect, fed back into the
// next prompt.
type validationError struct {
	defect error
	detail string
}

func (v validationError) Error() string {
	if v.detail != "" {
		return fmt.Sprintf("%v: %s", v.defect, v.detail)
	}
	return v.defect.Error()
}

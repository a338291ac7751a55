// Package llm provides clients for the external inference services.
// The orchestration core talks to them only through the Invoker interface,
// so tests and alternate providers plug in at construction time.
package llm

import (
	"context"
	"fmt"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// GenerationParams are the sampling controls for one model call.
type GenerationParams struct {
	// MaxTokens caps the generation length.
	MaxTokens int
	// Temperature is the sampling temperature.
	Temperature float64
	// Stop lists stop sequences, if any.
	Stop []string
	// RepetitionPenalty discourages loops in adapter-served models.
	// Zero means server default.
	RepetitionPenalty float64
	// GuidedJSON, when non-nil, asks the server to constrain output to
	// this JSON schema (vLLM guided decoding).
	GuidedJSON map[string]any
}

// Request addresses one inference call.
type Request struct {
	// Endpoint is the base URL of the serving instance (includes /v1).
	Endpoint string
	// Model is the served model or adapter name.
	Model string
	// Variant is the size class this call was routed to. Providers that
	// carry their own per-variant model names resolve against it.
	Variant models.Variant
	// Prompt is the full prompt text.
	Prompt string
	// Params are the sampling controls.
	Params GenerationParams
}

// Invoker is the synchronous request/response contract with an inference
// service.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// InferenceError reports a failed model call. Node-level callers degrade it
// to a sentinel output; it never aborts a whole scheduler run.
type InferenceError struct {
	Endpoint string
	Model    string
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference call to %s (model %s) failed: %v", e.Endpoint, e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

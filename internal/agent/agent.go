// Package agent executes single subtasks against the external inference
// services, selecting a size-appropriate model variant per call.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/llm"
	"github.com/polyflow-ai/polyflow/internal/registry"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

// ContextEntry is one predecessor's output threaded into a node's prompt.
type ContextEntry struct {
	NodeID string
	Text   string
}

// DomainAgent formats a prompt from the domain's registry spec and invokes
// the selected model variant. It holds no per-run mutable state; the
// scheduler owns the output slots.
type DomainAgent struct {
	registry  *registry.Registry
	invoker   llm.Invoker
	inference config.InferenceConfig
	selector  Selector
	logger    *slog.Logger
}

// New creates a DomainAgent.
func New(reg *registry.Registry, invoker llm.Invoker, inference config.InferenceConfig, selector Selector, logger *slog.Logger) *DomainAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &DomainAgent{
		registry:  reg,
		invoker:   invoker,
		inference: inference,
		selector:  selector,
		logger:    logger,
	}
}

// Run executes one subtask and returns the raw model output. The single
// side effect is the outbound inference call; failures surface as
// *llm.InferenceError for the scheduler to degrade into a sentinel.
func (a *DomainAgent) Run(ctx context.Context, node *models.Subtask, predecessors []ContextEntry) (string, error) {
	spec, ok := a.registry.Spec(node.Domain)
	if !ok {
		return "", fmt.Errorf("no registry spec for domain %s", node.Domain)
	}

	variant := a.selector.Select(ctx, node.Domain, node.Description)
	prompt := buildPrompt(spec, node.Description, predecessors)

	a.logger.Debug("dispatching subtask",
		"node", node.ID, "domain", node.Domain, "variant", variant)

	return a.invoker.Invoke(ctx, llm.Request{
		Endpoint: a.inference.Endpoint(variant),
		Model:    a.inference.AdapterModel(node.Domain),
		Variant:  variant,
		Prompt:   prompt,
		Params: llm.GenerationParams{
			MaxTokens:         spec.MaxTokens,
			Temperature:       spec.Temperature,
			RepetitionPenalty: 1.1,
			Stop:              []string{"\n\n\n", "Task:", "Response:"},
		},
	})
}

// buildPrompt composes the domain instruction, predecessor context, and
// the task itself.
func buildPrompt(spec registry.Spec, task string, predecessors []ContextEntry) string {
	var b strings.Builder
	b.WriteString(spec.Instruction)
	b.WriteString("\n")

	if len(predecessors) > 0 {
		b.WriteString("\nContext from previous steps:\n")
		for _, entry := range predecessors {
			b.WriteString(fmt.Sprintf("- %s: %s\n", entry.NodeID, entry.Text))
		}
	}

	b.WriteString("\nTask: ")
	b.WriteString(task)
	b.WriteString("\n\nProvide your response:")
	return b.String()
}

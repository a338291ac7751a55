// Package router decomposes a user task into a validated DAG of
// domain-tagged subtasks using the router model's structured output.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/graph"
	"github.com/polyflow-ai/polyflow/internal/llm"
	"github.com/polyflow-ai/polyflow/internal/registry"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

// decomposedTask is the JSON structure the router model emits per subtask.
type decomposedTask struct {
	ID           string   `json:"id"`
	Domain       string   `json:"domain"`
	Content      string   `json:"content"`
	Dependencies []string `json:"dependencies"`
}

// decomposition is the full router output document.
type decomposition struct {
	Tasks []decomposedTask `json:"tasks"`
}

// Decomposer turns task text into a dependency graph of subtasks.
type Decomposer struct {
	invoker   llm.Invoker
	registry  *registry.Registry
	inference config.InferenceConfig
	attempts  int
	logger    *slog.Logger
}

// NewDecomposer creates a Decomposer. attempts bounds structured-output
// attempts per decomposition; validation errors from failed attempts are
// fed back into the next prompt.
func NewDecomposer(invoker llm.Invoker, reg *registry.Registry, inference config.InferenceConfig, attempts int, logger *slog.Logger) *Decomposer {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{
		invoker:   invoker,
		registry:  reg,
		inference: inference,
		attempts:  attempts,
		logger:    logger,
	}
}

// Decompose produces a validated DAG for the task. On refinement passes,
// feedback and previousResults augment the original task text. Exhausting
// all attempts yields a *DecompositionError, which is fatal for the run.
func (d *Decomposer) Decompose(ctx context.Context, task, feedback, previousResults string) (*graph.DAG, error) {
	var attemptErrs []validationError

	for attempt := 1; attempt <= d.attempts; attempt++ {
		prompt := buildPrompt(task, feedback, previousResults, attemptErrs)

		raw, err := d.invoker.Invoke(ctx, llm.Request{
			Endpoint: d.inference.Endpoint(models.VariantLarge),
			Model:    d.inference.RouterModel,
			Variant:  models.VariantLarge,
			Prompt:   prompt,
			Params: llm.GenerationParams{
				MaxTokens:   1024,
				Temperature: 0.7,
				Stop:        []string{"\n\n\n"},
				GuidedJSON:  dagSchema(),
			},
		})
		if err != nil {
			// An unreachable router model cannot be corrected by
			// re-prompting.
			return nil, &DecompositionError{Attempts: attempt, Defect: err}
		}

		dag, vErr := d.parseAndValidate(raw)
		if vErr == nil {
			d.logger.Info("task decomposed",
				"attempt", attempt, "nodes", dag.Size(), "edges", len(dag.Edges()))
			return dag, nil
		}

		d.logger.Warn("decomposition attempt rejected",
			"attempt", attempt, "error", vErr)
		attemptErrs = append(attemptErrs, *vErr)
	}

	last := attemptErrs[len(attemptErrs)-1]
	return nil, &DecompositionError{
		Attempts: d.attempts,
		Defect:   last.defect,
		Detail:   last.detail,
	}
}

// parseAndValidate turns raw model output into a built DAG, normalizing
// domain names through the registry's alias table.
func (d *Decomposer) parseAndValidate(raw string) (*graph.DAG, *validationError) {
	cleaned := stripFences(raw)

	var doc decomposition
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &validationError{defect: ErrUnparseable, detail: err.Error()}
	}
	if len(doc.Tasks) == 0 {
		return nil, &validationError{defect: ErrEmptyDecomposition}
	}

	seen := make(map[string]bool, len(doc.Tasks))
	subtasks := make([]*models.Subtask, 0, len(doc.Tasks))

	for _, dt := range doc.Tasks {
		if dt.ID == "" || dt.Domain == "" || dt.Content == "" {
			return nil, &validationError{defect: ErrMissingField, detail: "id=" + dt.ID}
		}
		if seen[dt.ID] {
			return nil, &validationError{defect: ErrDuplicateID, detail: dt.ID}
		}
		seen[dt.ID] = true

		domain, err := d.registry.Normalize(dt.Domain)
		if err != nil {
			return nil, &validationError{defect: ErrUnknownDomain, detail: dt.Domain}
		}

		for _, dep := range dt.Dependencies {
			if dep == dt.ID {
				return nil, &validationError{defect: ErrSelfDependency, detail: dt.ID}
			}
		}

		subtasks = append(subtasks, &models.Subtask{
			ID:          dt.ID,
			Domain:      domain,
			Description: dt.Content,
			DependsOn:   append([]string(nil), dt.Dependencies...),
		})
	}

	for _, dt := range doc.Tasks {
		for _, dep := range dt.Dependencies {
			if !seen[dep] {
				return nil, &validationError{defect: ErrUnknownDependency, detail: dt.ID + " -> " + dep}
			}
		}
	}

	dag, err := graph.Build(subtasks)
	if err != nil {
		// graph.Build re-checks structure and adds cycle detection;
		// its defects are still decomposition defects at this stage.
		return nil, &validationError{defect: err}
	}
	return dag, nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// stripFences removes markdown code fences the model may wrap around its
// JSON even under guided decoding.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.Contains(cleaned, "```") {
		return cleaned
	}
	if m := fenceRe.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}
	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

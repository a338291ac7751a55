// Package evaluator merges subtask outputs into one answer and judges
// whether that answer adequately addresses the original task.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/llm"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

const evaluationPrompt = `Evaluate if the following results adequately address the original task.

Original Task:
%s

Results:
%s

Evaluation:
- Does the result fully address the task? (YES/NO)
- If NO, what specific improvements are needed?

Output format:
STATUS: [YES/NO]
FEEDBACK: [Your feedback here]
`

// Verdict is the outcome of one evaluation pass.
type Verdict struct {
	Complete bool
	// Feedback is non-empty whenever Complete is false. It is fed back
	// into the next decomposition attempt.
	Feedback string
	// PartialFailure marks a merged answer that still carries one or
	// more failed-agent sentinels.
	PartialFailure bool
}

// Evaluator scores a merged answer with a model call.
type Evaluator struct {
	invoker   llm.Invoker
	inference config.InferenceConfig
	logger    *slog.Logger
}

// New creates an evaluator backed by the large inference endpoint.
func New(invoker llm.Invoker, inference config.InferenceConfig, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{invoker: invoker, inference: inference, logger: logger}
}

// Merge joins node outputs into a single answer, each section labeled
// with its domain, in the order the nodes executed.
func Merge(outputs []models.NodeOutput) string {
	if len(outputs) == 0 {
		return ""
	}
	sections := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if out.Text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("[%s]\n%s", strings.ToUpper(string(out.Domain)), out.Text))
	}
	return strings.Join(sections, "\n\n")
}

// Evaluate judges whether merged addresses task. Evaluation model
// failures degrade to "incomplete" with the error as feedback so the
// refinement loop keeps moving instead of aborting the run.
func (e *Evaluator) Evaluate(ctx context.Context, task, merged string) (Verdict, error) {
	partial := strings.Contains(merged, models.FailureSentinel)

	raw, err := e.invoker.Invoke(ctx, llm.Request{
		Endpoint: e.inference.Endpoint(models.VariantLarge),
		Model:    e.inference.EvaluatorModel,
		Variant:  models.VariantLarge,
		Prompt:   fmt.Sprintf(evaluationPrompt, task, merged),
		Params: llm.GenerationParams{
			MaxTokens:   256,
			Temperature: 0.3,
		},
	})
	if err != nil {
		e.logger.Warn("evaluation call failed, treating result as incomplete", "error", err)
		return Verdict{
			Complete:       false,
			Feedback:       fmt.Sprintf("evaluation unavailable: %v", err),
			PartialFailure: partial,
		}, nil
	}

	verdict := parseVerdict(raw)
	verdict.PartialFailure = partial

	// A partially failed answer is never complete, whatever the model says.
	if partial && verdict.Complete {
		verdict.Complete = false
		verdict.Feedback = "one or more subtasks failed to produce output; retry the failed steps"
	}

	e.logger.Debug("evaluated merged result",
		"complete", verdict.Complete, "partial_failure", verdict.PartialFailure)
	return verdict, nil
}

// parseVerdict extracts the STATUS/FEEDBACK protocol from a raw
// evaluation. Malformed responses default to incomplete with the whole
// response as feedback, so feedback is never empty on an incomplete
// verdict.
func parseVerdict(raw string) Verdict {
	lower := strings.ToLower(raw)

	if strings.Contains(lower, "status: yes") || strings.Contains(lower, "status:yes") {
		return Verdict{Complete: true}
	}

	if idx := strings.Index(lower, "feedback:"); idx >= 0 {
		feedback := strings.TrimSpace(raw[idx+len("feedback:"):])
		if feedback != "" {
			return Verdict{Complete: false, Feedback: feedback}
		}
	}

	feedback := strings.TrimSpace(raw)
	if feedback == "" {
		feedback = "the result did not address the task; produce a more complete answer"
	}
	return Verdict{Complete: false, Feedback: feedback}
}

package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/llm"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

type cannedInvoker struct {
	response string
	err      error
	prompt   string
}

func (c *cannedInvoker) Invoke(_ context.Context, req llm.Request) (string, error) {
	c.prompt = req.Prompt
	return c.response, c.err
}

func newEvaluator(invoker llm.Invoker) *Evaluator {
	return New(invoker, config.InferenceConfig{
		LargeEndpoint:  "http://localhost:8001/v1",
		EvaluatorModel: "judge-model",
	}, slog.New(slog.DiscardHandler))
}

func TestMergeLabelsAndOrders(t *testing.T) {
	merged := Merge([]models.NodeOutput{
		{NodeID: "n2", Domain: models.DomainCommonsense, Text: "general summary"},
		{NodeID: "n1", Domain: models.DomainMedical, Text: "clinical finding"},
	})

	// Sections keep execution order, not domain order.
	first := strings.Index(merged, "[COMMONSENSE]")
	second := strings.Index(merged, "[MEDICAL]")
	if first < 0 || second < 0 {
		t.Fatalf("missing domain labels in %q", merged)
	}
	if first > second {
		t.Errorf("sections out of execution order: %q", merged)
	}
	if !strings.Contains(merged, "[MEDICAL]\nclinical finding") {
		t.Errorf("section body not attached to its label: %q", merged)
	}
}

func TestMergeSkipsEmptyOutputs(t *testing.T) {
	merged := Merge([]models.NodeOutput{
		{NodeID: "n1", Domain: models.DomainMath, Text: ""},
		{NodeID: "n2", Domain: models.DomainLaw, Text: "analysis"},
	})
	if strings.Contains(merged, "MATH") {
		t.Errorf("empty output should be skipped: %q", merged)
	}
	if Merge(nil) != "" {
		t.Error("merging nothing should yield empty string")
	}
}

func TestEvaluateComplete(t *testing.T) {
	invoker := &cannedInvoker{response: "STATUS: YES\nFEEDBACK: none needed"}
	e := newEvaluator(invoker)

	verdict, err := e.Evaluate(context.Background(), "the task", "[MATH]\n42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Complete {
		t.Error("expected complete verdict")
	}
	if !strings.Contains(invoker.prompt, "the task") {
		t.Error("evaluation prompt should include the original task")
	}
}

func TestEvaluateIncompleteCarriesFeedback(t *testing.T) {
	invoker := &cannedInvoker{response: "STATUS: NO\nFEEDBACK: missing the legal analysis"}
	e := newEvaluator(invoker)

	verdict, err := e.Evaluate(context.Background(), "task", "[MATH]\n42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Complete {
		t.Fatal("expected incomplete verdict")
	}
	if verdict.Feedback != "missing the legal analysis" {
		t.Errorf("unexpected feedback %q", verdict.Feedback)
	}
}

func TestEvaluateMalformedResponseIsIncomplete(t *testing.T) {
	invoker := &cannedInvoker{response: "I think it looks fine overall"}
	e := newEvaluator(invoker)

	verdict, err := e.Evaluate(context.Background(), "task", "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Complete {
		t.Fatal("malformed response must not be treated as complete")
	}
	if verdict.Feedback == "" {
		t.Error("incomplete verdict must carry non-empty feedback")
	}
}

func TestEvaluatePartialFailureNeverCompletes(t *testing.T) {
	invoker := &cannedInvoker{response: "STATUS: YES"}
	e := newEvaluator(invoker)

	merged := "[MEDICAL]\n" + models.FailureSentinel
	verdict, err := e.Evaluate(context.Background(), "task", merged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Complete {
		t.Error("answer containing a failure sentinel must not complete")
	}
	if !verdict.PartialFailure {
		t.Error("expected PartialFailure to be set")
	}
	if verdict.Feedback == "" {
		t.Error("expected feedback about the failed subtask")
	}
}

func TestEvaluateModelErrorDegradesToIncomplete(t *testing.T) {
	invoker := &cannedInvoker{err: errors.New("endpoint down")}
	e := newEvaluator(invoker)

	verdict, err := e.Evaluate(context.Background(), "task", "answer")
	if err != nil {
		t.Fatalf("evaluation errors should degrade, got %v", err)
	}
	if verdict.Complete {
		t.Error("expected incomplete verdict on model failure")
	}
	if verdict.Feedback == "" {
		t.Error("expected feedback explaining the degraded evaluation")
	}
}

func TestParseVerdictVariants(t *testing.T) {
	tests := []struct {
		raw      string
		complete bool
	}{
		{"STATUS: YES", true},
		{"status:yes", true},
		{"STATUS: NO\nFEEDBACK: fix it", false},
		{"garbage", false},
		{"", false},
	}
	for _, tt := range tests {
		v := parseVerdict(tt.raw)
		if v.Complete != tt.complete {
			t.Errorf("parseVerdict(%q).Complete = %v, want %v", tt.raw, v.Complete, tt.complete)
		}
		if !v.Complete && v.Feedback == "" {
			t.Errorf("parseVerdict(%q) incomplete without feedback", tt.raw)
		}
	}
}

package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/polyflow-ai/polyflow/internal/config"
	"github.com/polyflow-ai/polyflow/internal/llm"
	"github.com/polyflow-ai/polyflow/internal/registry"
	"github.com/polyflow-ai/polyflow/pkg/models"
)

type captureInvoker struct {
	req llm.Request
}

func (c *captureInvoker) Invoke(_ context.Context, req llm.Request) (string, error) {
	c.req = req
	return "model response", nil
}

func testInference() config.InferenceConfig {
	return config.InferenceConfig{
		SmallEndpoint:  "http://small:8000/v1",
		LargeEndpoint:  "http://large:8001/v1",
		EvaluatorModel: "base-model",
		Adapters: map[string]string{
			"medical": "medqa-lora",
			"law":     "casehold-lora",
			"math":    "mathqa-lora",
		},
	}
}

func TestRunRoutesVariantAndAdapter(t *testing.T) {
	invoker := &captureInvoker{}
	a := New(registry.NewDefault(), invoker, testInference(),
		StaticDefaultSelector{Variant: models.VariantLarge}, quiet())

	node := &models.Subtask{ID: "n1", Domain: models.DomainMedical, Description: "Assess the symptoms"}
	out, err := a.Run(context.Background(), node, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "model response" {
		t.Errorf("unexpected output %q", out)
	}

	if invoker.req.Endpoint != "http://large:8001/v1" {
		t.Errorf("large variant should hit the large endpoint, got %s", invoker.req.Endpoint)
	}
	if invoker.req.Model != "medqa-lora" {
		t.Errorf("medical domain should use its adapter, got %s", invoker.req.Model)
	}
}

func TestRunFallsBackToBaseModelWithoutAdapter(t *testing.T) {
	invoker := &captureInvoker{}
	a := New(registry.NewDefault(), invoker, testInference(),
		StaticDefaultSelector{Variant: models.VariantSmall}, quiet())

	node := &models.Subtask{ID: "n1", Domain: models.DomainCommonsense, Description: "Explain the idea"}
	if _, err := a.Run(context.Background(), node, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if invoker.req.Endpoint != "http://small:8000/v1" {
		t.Errorf("small variant should hit the small endpoint, got %s", invoker.req.Endpoint)
	}
	if invoker.req.Model != "base-model" {
		t.Errorf("unmapped domain should fall back to the base model, got %s", invoker.req.Model)
	}
}

func TestRunPromptContainsInstructionAndContext(t *testing.T) {
	invoker := &captureInvoker{}
	reg := registry.NewDefault()
	a := New(reg, invoker, testInference(), StaticDefaultSelector{}, quiet())

	node := &models.Subtask{ID: "n2", Domain: models.DomainLaw, Description: "Review the contract"}
	preds := []ContextEntry{{NodeID: "n1", Text: "the prior finding"}}
	if _, err := a.Run(context.Background(), node, preds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := invoker.req.Prompt
	spec, _ := reg.Spec(models.DomainLaw)
	if !strings.Contains(prompt, spec.Instruction) {
		t.Error("prompt missing the domain instruction")
	}
	if !strings.Contains(prompt, "n1: the prior finding") {
		t.Error("prompt missing predecessor context")
	}
	if !strings.Contains(prompt, "Task: Review the contract") {
		t.Error("prompt missing the task text")
	}
	if invoker.req.Params.MaxTokens != spec.MaxTokens {
		t.Errorf("expected registry max tokens %d, got %d", spec.MaxTokens, invoker.req.Params.MaxTokens)
	}
}

func TestRunRejectsUnregisteredDomain(t *testing.T) {
	reg, err := registry.FromYAML([]byte(`domains:
  math:
    description: only math
    instruction: solve problems carefully
`))
	if err != nil {
		t.Fatal(err)
	}

	a := New(reg, &captureInvoker{}, testInference(), StaticDefaultSelector{}, quiet())
	node := &models.Subtask{ID: "n1", Domain: models.DomainLaw, Description: "Review"}
	if _, err := a.Run(context.Background(), node, nil); err == nil {
		t.Fatal("expected error for domain without a registry spec")
	}
}

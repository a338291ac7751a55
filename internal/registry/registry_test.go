package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

func TestNewDefaultCoversAllDomains(t *testing.T) {
	r := NewDefault()

	for _, domain := range models.AllDomains() {
		spec, ok := r.Spec(domain)
		if !ok {
			t.Fatalf("no spec for domain %s", domain)
		}
		if spec.Instruction == "" {
			t.Errorf("domain %s has no instruction", domain)
		}
		if spec.MaxTokens <= 0 {
			t.Errorf("domain %s has no max_tokens", domain)
		}
	}

	if got := len(r.Domains()); got != 4 {
		t.Errorf("expected 4 domains, got %d", got)
	}
}

func TestNormalize(t *testing.T) {
	r := NewDefault()

	tests := []struct {
		in   string
		want models.Domain
	}{
		{"medical", models.DomainMedical},
		{"law", models.DomainLaw},
		{"  Math ", models.DomainMath},
		{"legal", models.DomainLaw},
		{"legal_analysis", models.DomainLaw},
		{"mathematics", models.DomainMath},
		{"healthcare", models.DomainMedical},
		{"medicine", models.DomainMedical},
	}
	for _, tt := range tests {
		got, err := r.Normalize(tt.in)
		if err != nil {
			t.Errorf("Normalize(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeRejectsUnknownNames(t *testing.T) {
	r := NewDefault()

	for _, name := range []string{"astrology", "", "finance"} {
		if _, err := r.Normalize(name); err == nil {
			t.Errorf("Normalize(%q) should fail", name)
		}
	}
}

func TestDetectDomain(t *testing.T) {
	r := NewDefault()

	tests := []struct {
		text string
		want models.Domain
	}{
		{"A patient presents with chest pain and shortness of breath", models.DomainMedical},
		{"Review the contract for liability clauses", models.DomainLaw},
		{"Calculate the integral of x squared", models.DomainMath},
		{"What should I cook for dinner tonight", models.DomainCommonsense},
	}
	for _, tt := range tests {
		if got := r.DetectDomain(tt.text); got != tt.want {
			t.Errorf("DetectDomain(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	doc := `domains:
  math:
    description: "Custom math agent"
    instruction: "Solve it with extreme rigor."
    temperature: 0.1
    max_tokens: 2048
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spec, ok := r.Spec(models.DomainMath)
	if !ok {
		t.Fatal("math spec missing after overlay")
	}
	if spec.Instruction != "Solve it with extreme rigor." {
		t.Errorf("overlay did not replace instruction, got %q", spec.Instruction)
	}
	if spec.MaxTokens != 2048 {
		t.Errorf("overlay did not replace max_tokens, got %d", spec.MaxTokens)
	}

	// Domains the file does not mention keep their defaults.
	if _, ok := r.Spec(models.DomainMedical); !ok {
		t.Error("medical spec lost during overlay")
	}
}

func TestMergeDistinguishesExplicitZeroFromUnset(t *testing.T) {
	doc := `domains:
  math:
    instruction: "Compute deterministically."
    temperature: 0
  law:
    instruction: "Cite the controlling authority."
`
	r, err := FromYAML([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mathSpec, _ := r.Spec(models.DomainMath)
	if mathSpec.Temperature != 0 {
		t.Errorf("explicit zero temperature lost, got %v", mathSpec.Temperature)
	}
	if mathSpec.MaxTokens != 512 {
		t.Errorf("omitted max_tokens should default to 512, got %d", mathSpec.MaxTokens)
	}

	lawSpec, _ := r.Spec(models.DomainLaw)
	if lawSpec.Temperature != 0.5 {
		t.Errorf("omitted temperature should default to 0.5, got %v", lawSpec.Temperature)
	}
}

func TestFromYAMLRejectsUnknownDomain(t *testing.T) {
	_, err := FromYAML([]byte("domains:\n  astrology:\n    description: nope\n"))
	if err == nil {
		t.Fatal("expected error for unknown domain")
	}
}

func TestReloadKeepsTablesOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	if err := os.WriteFile(path, []byte("domains: {not valid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewDefault()
	if err := r.Reload(path); err == nil {
		t.Fatal("expected reload error")
	}

	// Previous tables survive the failed reload.
	if _, ok := r.Spec(models.DomainMedical); !ok {
		t.Error("registry lost its specs after a failed reload")
	}
}

// Package registry holds the static mapping from domain name to agent
// behavior: prompt instruction, generation parameters, keyword list, and
// the alias table used to normalize near-miss domain names.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Spec describes one domain's agent behavior.
type Spec struct {
	// Domain is the canonical domain name.
	Domain models.Domain
	// Description is a short human-readable summary.
	Description string
	// Instruction is the system-style preamble for agent prompts.
	Instruction string
	// Keywords signal that free text belongs to this domain.
	Keywords []string
	// Aliases are near-miss names that normalize to this domain.
	Aliases []string
	// Temperature is the sampling temperature for this domain's agent.
	Temperature float64
	// MaxTokens caps the agent's generation length.
	MaxTokens int
}

// fileSpec is the on-disk spec shape. The numeric fields are pointers so
// an explicit zero is distinguishable from an omitted key.
type fileSpec struct {
	Description string   `yaml:"description"`
	Instruction string   `yaml:"instruction"`
	Keywords    []string `yaml:"keywords"`
	Aliases     []string `yaml:"aliases"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// file is the on-disk registry document shape.
type file struct {
	Domains map[string]fileSpec `yaml:"domains"`
}

// Registry is the lookup table for domain specs and name normalization.
// Safe for concurrent use; Reload swaps the tables atomically under lock.
type Registry struct {
	mu      sync.RWMutex
	specs   map[models.Domain]Spec
	aliases map[string]models.Domain
}

// NewDefault builds a registry from the embedded defaults.
func NewDefault() *Registry {
	r, err := FromYAML(defaultsYAML)
	if err != nil {
		// The embedded document is part of the build; a parse failure
		// here is a programming error.
		panic(fmt.Sprintf("registry: embedded defaults invalid: %v", err))
	}
	return r
}

// Load reads a registry document from path. The embedded defaults fill in
// any domain the file does not mention.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	r := NewDefault()
	if err := r.merge(data); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}
	return r, nil
}

// FromYAML parses a complete registry document.
func FromYAML(data []byte) (*Registry, error) {
	r := &Registry{
		specs:   make(map[models.Domain]Spec),
		aliases: make(map[string]models.Domain),
	}
	if err := r.merge(data); err != nil {
		return nil, err
	}
	if len(r.specs) == 0 {
		return nil, fmt.Errorf("registry document defines no domains")
	}
	return r, nil
}

// merge parses data and overlays it onto the current tables.
func (r *Registry) merge(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("unmarshal registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name, fs := range f.Domains {
		domain := models.Domain(strings.ToLower(strings.TrimSpace(name)))
		if !domain.Valid() {
			return fmt.Errorf("unknown domain %q in registry document", name)
		}
		spec := Spec{
			Domain:      domain,
			Description: fs.Description,
			Instruction: fs.Instruction,
			Keywords:    fs.Keywords,
			Aliases:     fs.Aliases,
			Temperature: 0.5,
			MaxTokens:   512,
		}
		if fs.Temperature != nil {
			spec.Temperature = *fs.Temperature
		}
		if fs.MaxTokens != nil {
			spec.MaxTokens = *fs.MaxTokens
		}
		r.specs[domain] = spec
		for _, alias := range spec.Aliases {
			r.aliases[strings.ToLower(strings.TrimSpace(alias))] = domain
		}
	}
	return nil
}

// Reload re-reads path and replaces the registry contents.
func (r *Registry) Reload(path string) error {
	fresh, err := Load(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = fresh.specs
	r.aliases = fresh.aliases
	return nil
}

// Spec returns the behavior spec for a canonical domain.
func (r *Registry) Spec(domain models.Domain) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[domain]
	return spec, ok
}

// Domains returns the canonical domain names in sorted order.
func (r *Registry) Domains() []models.Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Domain, 0, len(r.specs))
	for d := range r.specs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Normalize maps a raw domain string to its canonical domain. Exact names
// match first, then the alias table. Unmapped names are rejected rather
// than guessed at.
func (r *Registry) Normalize(name string) (models.Domain, error) {
	cleaned := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if domain := models.Domain(cleaned); domain.Valid() {
		if _, ok := r.specs[domain]; ok {
			return domain, nil
		}
	}
	if domain, ok := r.aliases[cleaned]; ok {
		return domain, nil
	}
	return "", fmt.Errorf("domain %q is not registered and has no alias", name)
}

// DetectDomain classifies free text by keyword match, falling back to
// commonsense for general tasks. Used by the CLI inspection command, not
// by the decomposition core.
func (r *Registry) DetectDomain(text string) models.Domain {
	lower := strings.ToLower(text)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, domain := range models.AllDomains() {
		spec, ok := r.specs[domain]
		if !ok || domain == models.DomainCommonsense {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return domain
			}
		}
	}
	return models.DomainCommonsense
}

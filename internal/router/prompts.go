package router

import (
	"fmt"
	"strings"
)

// systemPrompt instructs the router model to decompose a task into
// domain-tagged subtasks with a dependency graph.
const systemPrompt = `You are a Global Router LLM that decomposes complex tasks into domain-specific subtasks.

Your responsibilities:
1. Analyze the input task and identify required domains
2. Generate subtasks for four domain-specific agents: Commonsense, Medical, Law, Math
3. Create a dependency graph (DAG) showing task relationships
4. Output JSON format only

Available Domains (USE EXACT NAMES):
- commonsense: General reasoning, logic, common knowledge
- medical: Healthcare, diagnosis, treatment, clinical tasks
- law: Legal analysis, contracts, regulations, case law (NOT "legal")
- math: Calculations, equations, quantitative reasoning

CRITICAL: Use exact domain names: "commonsense", "medical", "law", "math"
DO NOT use: "legal", "legal_analysis", "mathematics", "healthcare", "medicine"

IMPORTANT: For complex tasks involving multiple domains, create separate subtasks for each domain.

Rules:
- Create detailed, actionable task descriptions (NOT "..." or vague text)
- Use IMPERATIVE/COMMAND format for all task descriptions
- Start task descriptions with action verbs: Analyze, Calculate, Evaluate, Assess, Determine, Check, Review
- Identify ALL domains needed for the task
- Create dependencies when one subtask needs results from another
- Independent subtasks should have empty dependencies []
- Each task must have a unique ID`

// userTemplate is the first-pass decomposition request.
const userTemplate = `Original Task: %s

Please decompose this task into subtasks with dependency graph.
Output JSON only, no explanation.`

// feedbackTemplate augments a re-decomposition with the evaluator's
// feedback and the previous merged result; the original task text is
// never replaced.
const feedbackTemplate = `Previous task decomposition was insufficient.

Original Task: %s

Previous Results: %s

Feedback: %s

Please create an improved task decomposition addressing the feedback.
Output JSON only, no explanation.`

// buildPrompt composes the full router prompt for one attempt, appending
// the most recent validation errors so the model can correct itself.
func buildPrompt(task, feedback, previousResults string, errs []validationError) string {
	var user string
	if feedback != "" && previousResults != "" {
		user = fmt.Sprintf(feedbackTemplate, task, previousResults, feedback)
	} else {
		user = fmt.Sprintf(userTemplate, task)
	}

	errorBlock := ""
	if len(errs) > 0 {
		recent := errs
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		lines := make([]string, 0, len(recent))
		for _, e := range recent {
			lines = append(lines, "- "+e.Error())
		}
		errorBlock = "\n\nPrevious attempts had validation issues:\n" +
			strings.Join(lines, "\n") +
			"\nPlease correct these issues in your response."
	}

	return systemPrompt + "\n\n" + user + errorBlock
}

// dagSchema is the guided-decoding JSON schema for the router output.
func dagSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tasks": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":     map[string]any{"type": "string"},
						"domain": map[string]any{"type": "string"},
						"content": map[string]any{
							"type":      "string",
							"minLength": 10,
						},
						"dependencies": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required": []string{"id", "domain", "content"},
				},
			},
		},
		"required": []string{"tasks"},
	}
}

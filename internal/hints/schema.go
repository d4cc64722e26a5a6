package hints

import "github.com/abhisek/masteryforge/internal/llm"

// HintSchema is the structured output requested from the LLM.
var HintSchema = &llm.Schema{
	Name:        "concept-hint",
	Description: "One short, encouraging hint for a learner working on a concept",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hint": map[string]any{
				"type":        "string",
				"description": "The hint, 1-3 sentences, without giving away a full answer",
				"minLength":   1,
			},
		},
		"required":             []any{"hint"},
		"additionalProperties": false,
	},
}

package port

import "context"

// LLM represents a language model for answer synthesis.
type LLM interface {
	// Generate produces a completion for the user prompt, optionally guided
	// by a system prompt.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

package ai

import "context"

// TextGenerator generates prose from a system prompt and user prompt.
// The provider gets exactly one attempt per call; retries are a caller
// policy decision.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

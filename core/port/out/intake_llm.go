package out

import "context"

// CompletionClient is the outbound port for the language model.
// CompleteJSON must request a JSON-only structured response; callers treat
// any prose-wrapped or malformed completion as a parse failure.
type CompletionClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

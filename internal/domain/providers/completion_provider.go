package providers

import "context"

// CompletionRequest is a single-turn chat completion request.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// CompletionProvider produces text from a language model.
type CompletionProvider interface {
	// Complete returns the trimmed model output for the request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name identifies the provider for logs and health output.
	Name() string
}

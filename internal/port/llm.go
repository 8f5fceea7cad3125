package port

import (
	"context"

	"ragchat/internal/domain"
)

// ChatMessage is one message in an OpenAI-style chat request.
type ChatMessage struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// ChatRequest describes one generation call. Model and Temperature come from
// the engine's active ModelConfig so a swap never affects a call in flight.
type ChatRequest struct {
	Model       string
	Temperature float64
	Messages    []ChatMessage
}

// ChatResult is the generated text plus the usage accounting reported by the
// provider in the same API response.
type ChatResult struct {
	Content string
	Usage   domain.UsageStats
}

// ChatModel represents a language model for chat-style text generation.
// Implementations must be safe for concurrent use.
type ChatModel interface {
	// Complete sends the messages to the model and returns the first choice.
	Complete(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// ModelCatalog lists the chat model identifiers currently offered by the
// provider.
type ModelCatalog interface {
	ListModels(ctx context.Context) ([]string, error)
}

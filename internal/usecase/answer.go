package usecase

import (
	"context"
	"fmt"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// AnswerGenerator produces a grounded answer from the condensed query, the
// retrieved passages and the prior turns.
type AnswerGenerator struct {
	topic    string
	fallback string
}

// NewAnswerGenerator configures the generator's persona subject and the
// fallback channel users are redirected to when the context is insufficient.
func NewAnswerGenerator(topic, fallback string) *AnswerGenerator {
	if topic == "" {
		topic = "the knowledge base"
	}
	if fallback == "" {
		fallback = "the official website or support channel"
	}
	return &AnswerGenerator{topic: topic, fallback: fallback}
}

// Generate issues one chat call: system instruction with passage context,
// the history window as prior messages, then the condensed query. Usage is
// taken from the same API response as the answer text.
func (g *AnswerGenerator) Generate(ctx context.Context, chat port.ChatModel, cfg domain.ModelConfig, query string, passages []domain.Passage, history []domain.Turn) (string, domain.UsageStats, error) {
	system, err := renderSystemPrompt(g.topic, g.fallback, passages)
	if err != nil {
		return "", domain.UsageStats{}, domain.E(domain.KindUnexpected, err)
	}

	messages := make([]port.ChatMessage, 0, len(history)+2)
	messages = append(messages, port.ChatMessage{Role: "system", Content: system})
	for _, turn := range history {
		role := "assistant"
		if turn.Speaker == domain.SpeakerUser {
			role = "user"
		}
		messages = append(messages, port.ChatMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, port.ChatMessage{Role: "user", Content: query})

	result, err := chat.Complete(ctx, port.ChatRequest{
		Model:       cfg.Name,
		Temperature: cfg.Temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", domain.UsageStats{}, domain.E(domain.KindGenerationFailure, fmt.Errorf("generate answer: %w", err))
	}
	if result.Content == "" {
		return "", result.Usage, domain.Ef(domain.KindGenerationFailure, "generate answer: model returned empty content")
	}

	return result.Content, result.Usage, nil
}

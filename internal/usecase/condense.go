package usecase

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// Condenser rewrites a context-dependent follow-up question into a
// standalone search query.
type Condenser struct{}

func NewCondenser() *Condenser {
	return &Condenser{}
}

// Condense produces a self-contained query from the history and the new
// utterance. With an empty history the utterance is already standalone and
// is returned as-is without a model call.
//
// A backend failure is returned as a generation failure rather than falling
// back to the raw utterance: losing the disambiguation context would
// silently degrade retrieval quality.
func (c *Condenser) Condense(ctx context.Context, chat port.ChatModel, cfg domain.ModelConfig, history []domain.Turn, utterance string) (string, domain.UsageStats, error) {
	if len(history) == 0 {
		return utterance, domain.UsageStats{}, nil
	}

	prompt, err := renderCondensePrompt(history, utterance)
	if err != nil {
		return "", domain.UsageStats{}, domain.E(domain.KindUnexpected, err)
	}

	result, err := chat.Complete(ctx, port.ChatRequest{
		Model:       cfg.Name,
		Temperature: cfg.Temperature,
		Messages: []port.ChatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", domain.UsageStats{}, domain.E(domain.KindGenerationFailure, fmt.Errorf("condense query: %w", err))
	}

	query := firstLine(result.Content)
	if query == "" {
		return "", result.Usage, domain.Ef(domain.KindGenerationFailure, "condense query: model returned empty rewrite")
	}

	return query, result.Usage, nil
}

// firstLine trims the model output to its first non-empty line; the rewrite
// instruction asks for a single line but models occasionally pad it.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

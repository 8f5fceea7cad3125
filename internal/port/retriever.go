package port

import (
	"context"

	"ragchat/internal/domain"
)

// Retriever finds supporting passages for a standalone query.
type Retriever interface {
	// Retrieve returns up to k passages ordered by decreasing relevance.
	Retrieve(ctx context.Context, query string, k int) ([]domain.Passage, error)
}

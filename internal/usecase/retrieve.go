package usecase

import (
	"context"
	"fmt"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// SemanticRetriever embeds the query and delegates to the vector index,
// formatting the hits as Passages with provenance and rank.
type SemanticRetriever struct {
	embedder port.Embedder
	index    port.VectorIndex
}

func NewSemanticRetriever(embedder port.Embedder, index port.VectorIndex) *SemanticRetriever {
	return &SemanticRetriever{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve returns up to k passages ordered by decreasing similarity.
// Any failure here leaves the engine without grounding material, so it is
// classified as retrieval-unavailable rather than something to paper over.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, domain.E(domain.KindRetrievalUnavailable, fmt.Errorf("failed to embed query: %w", err))
	}
	if len(embeddings) == 0 {
		return nil, domain.Ef(domain.KindRetrievalUnavailable, "embedding returned empty result")
	}

	results, err := r.index.Search(embeddings[0], k)
	if err != nil {
		return nil, domain.E(domain.KindRetrievalUnavailable, fmt.Errorf("vector search failed: %w", err))
	}

	passages := make([]domain.Passage, 0, len(results))
	for i, result := range results {
		source := result.Metadata["source"]
		if source == "" {
			source = result.ID
		}
		passages = append(passages, domain.Passage{
			Content: result.Content,
			Source:  source,
			Rank:    i + 1,
		})
	}

	return passages, nil
}

var _ port.Retriever = (*SemanticRetriever)(nil)

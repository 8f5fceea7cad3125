package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"ragchat/config"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/llm"
	"ragchat/internal/adapter/store"
	"ragchat/internal/domain"
	"ragchat/internal/port"
	"ragchat/internal/usecase"
)

// newEmbedder builds the configured embedding provider. Every failure here
// means the process cannot serve, so errors are configuration errors.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		embedder, err := embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, embedding.Options{
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
		})
		if err != nil {
			return nil, domain.E(domain.KindConfiguration, err)
		}
		return embedder, nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, domain.Ef(domain.KindConfiguration, "unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// newChatClient builds the shared chat completions client.
func newChatClient(cfg *config.Config) (*llm.Client, error) {
	client, err := llm.NewClient(llm.Config{
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		BaseURL:   cfg.LLM.BaseURL,
		Timeout:   time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, domain.E(domain.KindConfiguration, err)
	}
	return client, nil
}

// indexPath resolves the artifact location relative to the root directory.
func indexPath(cfg *config.Config, rootDir string) string {
	if filepath.IsAbs(cfg.Index.Path) {
		return cfg.Index.Path
	}
	return filepath.Join(rootDir, cfg.Index.Path)
}

// openIndex loads the vector index artifact and verifies it matches the
// configured embedder. A mismatch is fatal, not retriable: serving against
// the wrong embedding space would return garbage passages.
func openIndex(cfg *config.Config, rootDir string, embedder port.Embedder) (*store.BoltVectorIndex, error) {
	idx, err := store.OpenBoltVectorIndex(indexPath(cfg, rootDir))
	if err != nil {
		return nil, domain.E(domain.KindConfiguration, err)
	}

	m := idx.Manifest()
	if m.Dimension != embedder.Dimension() {
		return nil, domain.Ef(domain.KindConfiguration,
			"index dimension %d does not match embedder %q dimension %d (rebuild the index with 'ragchat index')",
			m.Dimension, embedder.ModelName(), embedder.Dimension())
	}
	if m.EmbeddingModel != embedder.ModelName() {
		return nil, domain.Ef(domain.KindConfiguration,
			"index was built with embedding model %q but %q is configured (rebuild the index with 'ragchat index')",
			m.EmbeddingModel, embedder.ModelName())
	}

	return idx, nil
}

// engineOptions assembles the per-session engine options shared by the
// serve and chat commands.
func engineOptions(cfg *config.Config, chat *llm.Client, retriever port.Retriever) usecase.Options {
	return usecase.Options{
		Chat:      chat,
		Catalog:   chat,
		Retriever: retriever,
		Model: domain.ModelConfig{
			Name:        cfg.Chat.Model,
			Temperature: cfg.Chat.Temperature,
		},
		OpeningMessage: cfg.Chat.OpeningMessage,
		TopK:           cfg.Retrieve.TopK,
		HistoryWindow:  cfg.Chat.HistoryWindow,
		CallTimeout:    time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
		Topic:          cfg.Chat.Topic,
		Fallback:       cfg.Chat.Fallback,
	}
}

// buildStack wires embedder, index and retriever for the serving commands.
func buildStack(cfg *config.Config, rootDir string) (*llm.Client, port.Retriever, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}

	idx, err := openIndex(cfg, rootDir, embedder)
	if err != nil {
		return nil, nil, err
	}

	chat, err := newChatClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	fmt.Printf("Loaded index: %d passages (embedding model %s, dimension %d)\n",
		idx.Count(), idx.Manifest().EmbeddingModel, idx.Dimension())

	return chat, usecase.NewSemanticRetriever(embedder, idx), nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xhad/croprag/internal/types"
	"github.com/xhad/croprag/pkg/config"
	"github.com/xhad/croprag/pkg/llm"
	"github.com/xhad/croprag/pkg/recommend"
	"github.com/xhad/croprag/pkg/store"
)

// openStore connects to the configured vector store. The caller closes it.
func openStore(ctx context.Context, cfg *config.Config) (types.VectorStore, error) {
	vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		Backend:    cfg.Store.Backend,
		URL:        cfg.Store.URL,
		Collection: cfg.Store.Collection,
		VectorDim:  cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	return vs, nil
}

func openEmbedder(ctx context.Context, cfg *config.Config) (*llm.Embedder, error) {
	embedder, err := llm.NewEmbedderWithConfig(ctx, llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return embedder, nil
}

// services bundles what the query side needs.
type services struct {
	store    types.VectorStore
	embedder *llm.Embedder
	service  *recommend.Service
}

func (s *services) Close() error {
	return s.store.Close()
}

func openServices(ctx context.Context, cfg *config.Config) (*services, error) {
	embedder, err := openEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	vs, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []recommend.Option{
		recommend.WithTopK(cfg.Search.TopK),
		recommend.WithLogger(slog.Default()),
	}
	if cfg.LLM.Enabled {
		chat, err := llm.NewWithConfig(llm.ChatConfig{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			BaseURL:     cfg.LLM.BaseURL,
		})
		if err != nil {
			vs.Close()
			return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
		}
		opts = append(opts, recommend.WithExplainer(chat))
	}

	service, err := recommend.NewService(vs, embedder, opts...)
	if err != nil {
		vs.Close()
		return nil, err
	}

	return &services{store: vs, embedder: embedder, service: service}, nil
}

// Package reembed migrates stored records to the configured embedding model.
package reembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xhad/croprag/internal/types"
	"github.com/xhad/croprag/pkg/describe"
)

var (
	// ErrNoProgress is returned when a pass only yields records that were
	// already re-embedded, which means the store did not persist the update.
	ErrNoProgress = errors.New("re-embedding made no progress")

	// ErrDimensionChanged is returned before anything is written when the
	// embedder's vectors do not fit the collection's fixed dimension.
	ErrDimensionChanged = errors.New("embedding dimension differs from the collection")

	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// Config holds configuration for the re-embedding operation.
type Config struct {
	// BatchSize is the number of records fetched and embedded per pass
	BatchSize int

	// OnProgress is called after each stored batch with the running total
	OnProgress func(done int)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize: 20,
	}
}

// Reembedder re-embeds every record whose stored model differs from the
// embedder's model.
type Reembedder struct {
	store    types.VectorStore
	embedder types.Embedder
	config   *Config
	logger   *slog.Logger
}

func NewReembedder(store types.VectorStore, embedder types.Embedder, config *Config) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}

	return &Reembedder{
		store:    store,
		embedder: embedder,
		config:   config,
		logger:   slog.Default().With("component", "reembed", "model", embedder.Model()),
	}, nil
}

// Run processes stale records batch by batch until none remain and returns
// how many were re-embedded. Descriptions are re-rendered so records written
// with an older template are refreshed too.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	start := time.Now()
	model := r.embedder.Model()
	seen := make(map[string]bool)
	done := 0

	dim, err := r.store.Dimension(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read collection dimension: %w", err)
	}

	for {
		records, err := r.store.Stale(ctx, model, r.config.BatchSize)
		if err != nil {
			return done, fmt.Errorf("failed to query stale records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		fresh := 0
		for _, rec := range records {
			if !seen[rec.ID] {
				fresh++
				seen[rec.ID] = true
			}
		}
		if fresh == 0 {
			return done, ErrNoProgress
		}

		texts := make([]string, len(records))
		for i := range records {
			records[i].Description = describe.Record(records[i])
			records[i].Model = model
			texts[i] = records[i].Description
		}

		vectors, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return done, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vectors) != len(records) {
			return done, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(vectors))
		}
		if dim > 0 && len(vectors[0]) != dim {
			return done, fmt.Errorf("%w: collection stores %d dimensions, model %s produces %d; "+
				"ingest into a new store.collection or drop the existing one",
				ErrDimensionChanged, dim, model, len(vectors[0]))
		}
		for i := range records {
			records[i].Embedding = vectors[i]
		}

		if err := r.store.UpsertBatch(ctx, records); err != nil {
			return done, fmt.Errorf("failed to update records: %w", err)
		}

		done += len(records)
		r.logger.Debug("batch re-embedded", "done", done)
		if r.config.OnProgress != nil {
			r.config.OnProgress(done)
		}
	}

	if done == 0 {
		r.logger.Info("no stale records found")
		return 0, nil
	}

	elapsed := time.Since(start)
	r.logger.Info("re-embedding complete",
		"records", done,
		"elapsed", elapsed.Round(time.Millisecond),
		"records_per_sec", float64(done)/elapsed.Seconds())
	return done, nil
}

// StaleCount returns how many records, up to limit, were embedded with a
// model other than model.
func StaleCount(ctx context.Context, store types.VectorStore, model string, limit int) (int, error) {
	records, err := store.Stale(ctx, model, limit)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

package types

import (
	"context"

	"github.com/xhad/croprag/internal/models"
)

// Embedder maps description text to vectors with a single pinned model.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Model names the embedding model, stored next to every vector.
	Model() string
}

// VectorStore is the collection of embedded crop records.
type VectorStore interface {
	// EnsureCollection creates the collection if it is missing. It is a no-op
	// when the collection already exists.
	EnsureCollection(ctx context.Context) error
	// UpsertBatch writes records keyed by their ID.
	UpsertBatch(ctx context.Context, records []models.CropRecord) error
	// Search returns up to k records closest to vector, closest first. A
	// missing or empty collection yields an empty slice and no error.
	Search(ctx context.Context, vector []float32, k int) ([]models.MatchResult, error)
	// Stale returns up to limit records embedded with a model other than model.
	Stale(ctx context.Context, model string, limit int) ([]models.CropRecord, error)
	// Dimension returns the vector size the collection enforces, or 0 when
	// it enforces none or does not exist yet.
	Dimension(ctx context.Context) (int, error)
	Close() error
}

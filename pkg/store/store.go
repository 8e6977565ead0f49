package store

import (
	"context"
	"fmt"

	"github.com/xhad/croprag/internal/types"
)

const (
	BackendPgVector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendSQLite   = "sqlite"

	// DefaultCollection is the collection the ingestion and query processes share.
	DefaultCollection = "CropRow"
)

type VectorStoreConfig struct {
	Backend    string
	URL        string // Postgres DSN, Qdrant gRPC address or SQLite file
	Collection string
	VectorDim  int
}

// NewWithConfig connects to the configured backend. It fails when the
// backend is unreachable.
func NewWithConfig(ctx context.Context, config VectorStoreConfig) (types.VectorStore, error) {
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384 // all-minilm
	}

	var (
		vs  types.VectorStore
		err error
	)
	switch config.Backend {
	case BackendPgVector, "":
		vs, err = NewPgVectorStore(ctx, config)
	case BackendQdrant:
		vs, err = NewQdrantStore(ctx, config)
	case BackendSQLite:
		vs, err = NewSQLiteStore(ctx, config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, config.Backend)
	}
	if err != nil {
		return nil, err
	}
	return vs, nil
}

// fields lists the stored columns in schema order. The vector is kept apart.
var fields = []string{
	"text",
	"nitrogen",
	"phosphorus",
	"potassium",
	"temperature",
	"humidity",
	"ph_value",
	"recommended_crop",
	"chemical",
	"threshold",
	"disease",
	"affected_crops",
	"model",
}

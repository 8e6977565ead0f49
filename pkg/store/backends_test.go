package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/croprag/internal/types"
	"github.com/xhad/croprag/pkg/store"
)

// withUUIDs gives the fixture records IDs every backend accepts.
func withUUIDs(t *testing.T) []string {
	t.Helper()
	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids
}

func exerciseBackend(t *testing.T, s types.VectorStore) {
	ctx := context.Background()

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err, "search on a missing collection should not fail")
	assert.Empty(t, matches)

	dim, err := s.Dimension(ctx)
	require.NoError(t, err, "dimension of a missing collection should not fail")
	assert.Equal(t, 0, dim)

	require.NoError(t, s.EnsureCollection(ctx))
	require.NoError(t, s.EnsureCollection(ctx), "second create should be swallowed")

	dim, err = s.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	records := testRecords()
	for i, id := range withUUIDs(t) {
		records[i].ID = id
	}
	require.NoError(t, s.UpsertBatch(ctx, records))

	matches, err = s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "rice", matches[0].RecommendedCrop)
	assert.Equal(t, "chickpea", matches[1].RecommendedCrop)
	assert.Equal(t, 6.5, matches[0].PHValue)
	assert.Equal(t, "Tricyclazole", matches[0].Chemical)

	stale, err := s.Stale(ctx, "m1", 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, records[2].ID, stale[0].ID)
}

func TestPgVectorStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	s, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{
		Backend:    store.BackendPgVector,
		URL:        dsn,
		Collection: fmt.Sprintf("croprag_test_%d", time.Now().UnixNano()),
		VectorDim:  3,
	})
	require.NoError(t, err)
	defer s.Close()

	exerciseBackend(t, s)
}

func TestPgVectorStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		Backend: store.BackendPgVector,
		URL:     "postgres://nobody@127.0.0.1:1/none?connect_timeout=1",
	})
	assert.Error(t, err)
}

func TestQdrantStore(t *testing.T) {
	addr := os.Getenv("QDRANT_URL")
	if addr == "" {
		t.Skip("QDRANT_URL not set")
	}

	s, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{
		Backend:    store.BackendQdrant,
		URL:        addr,
		Collection: fmt.Sprintf("croprag_test_%d", time.Now().UnixNano()),
		VectorDim:  3,
	})
	require.NoError(t, err)
	defer s.Close()

	exerciseBackend(t, s)
}

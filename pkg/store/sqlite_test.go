package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/internal/types"
	"github.com/xhad/croprag/pkg/store"
)

func newSQLiteStore(t *testing.T) types.VectorStore {
	t.Helper()

	s, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{
		Backend:    store.BackendSQLite,
		URL:        filepath.Join(t.TempDir(), "croprag.db"),
		Collection: "CropRow",
		VectorDim:  3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecords() []models.CropRecord {
	return []models.CropRecord{
		{
			ID: "a", Nitrogen: 90, Phosphorus: 42, Potassium: 43, Temperature: 20.87, Humidity: 82, PH: 6.5,
			RecommendedCrop: "rice", Disease: "Blast", AffectedCrops: "Rice", Chemical: "Tricyclazole", Threshold: "0.6 g/L",
			Description: "rice row", Embedding: []float32{1, 0, 0}, Model: "m1",
		},
		{
			ID: "b", Nitrogen: 71, Phosphorus: 54, Potassium: 16, Temperature: 22.6, Humidity: 63.7, PH: 5.7,
			RecommendedCrop: "maize", Description: "maize row", Embedding: []float32{0, 1, 0}, Model: "m1",
		},
		{
			ID: "c", Nitrogen: 40, Phosphorus: 72, Potassium: 77, Temperature: 17, Humidity: 16.9, PH: 7.4,
			RecommendedCrop: "chickpea", Description: "chickpea row", Embedding: []float32{0.9, 0.1, 0}, Model: "m0",
		},
	}
}

func TestSQLiteStore_SearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.EnsureCollection(ctx))
	require.NoError(t, s.UpsertBatch(ctx, testRecords()))

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "rice", matches[0].RecommendedCrop)
	assert.Equal(t, "chickpea", matches[1].RecommendedCrop)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)

	// all stored fields round-trip
	assert.Equal(t, 90.0, matches[0].Nitrogen)
	assert.Equal(t, 6.5, matches[0].PHValue)
	assert.Equal(t, 20.87, matches[0].Temperature)
	assert.Equal(t, "Blast", matches[0].Disease)
	assert.Equal(t, "Rice", matches[0].AffectedCrops)
	assert.Equal(t, "Tricyclazole", matches[0].Chemical)
	assert.Equal(t, "0.6 g/L", matches[0].Threshold)
	assert.Equal(t, "rice row", matches[0].SourceText)
}

func TestSQLiteStore_SearchFewerThanK(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.EnsureCollection(ctx))
	require.NoError(t, s.UpsertBatch(ctx, testRecords()))

	matches, err := s.Search(ctx, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "maize", matches[0].RecommendedCrop)
}

func TestSQLiteStore_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	// missing collection
	matches, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	// created but empty
	require.NoError(t, s.EnsureCollection(ctx))
	matches, err = s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSQLiteStore_EnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.EnsureCollection(ctx))
	require.NoError(t, s.UpsertBatch(ctx, testRecords()[:1]))
	require.NoError(t, s.EnsureCollection(ctx))

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1, "second EnsureCollection should keep existing rows")
}

func TestSQLiteStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.EnsureCollection(ctx))

	records := testRecords()
	require.NoError(t, s.UpsertBatch(ctx, records))

	records[1].RecommendedCrop = "cotton"
	require.NoError(t, s.UpsertBatch(ctx, records[1:2]))

	matches, err := s.Search(ctx, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "cotton", matches[0].RecommendedCrop)
}

func TestSQLiteStore_UpsertRequiresID(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.EnsureCollection(ctx))

	err := s.UpsertBatch(ctx, []models.CropRecord{{RecommendedCrop: "rice", Embedding: []float32{1, 0, 0}}})
	assert.ErrorIs(t, err, store.ErrMissingID)
}

func TestSQLiteStore_SkipsMismatchedVectors(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.EnsureCollection(ctx))

	records := testRecords()
	records[2].Embedding = []float32{1, 0, 0, 0}
	require.NoError(t, s.UpsertBatch(ctx, records))

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSQLiteStore_Stale(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	stale, err := s.Stale(ctx, "m1", 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, s.EnsureCollection(ctx))
	require.NoError(t, s.UpsertBatch(ctx, testRecords()))

	stale, err = s.Stale(ctx, "m1", 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "c", stale[0].ID)
	assert.Equal(t, "m0", stale[0].Model)
	assert.Equal(t, "chickpea row", stale[0].Description)

	stale, err = s.Stale(ctx, "m2", 2)
	require.NoError(t, err)
	assert.Len(t, stale, 2)
}

func TestNewWithConfigUnknownBackend(t *testing.T) {
	_, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{Backend: "weaviate"})
	assert.ErrorIs(t, err, store.ErrUnknownBackend)
}

func TestSQLiteStore_DimensionUnconstrained(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.EnsureCollection(ctx))

	dim, err := s.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)
}

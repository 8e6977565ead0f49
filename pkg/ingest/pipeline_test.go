package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/internal/types"
	"github.com/xhad/croprag/pkg/llm/mock"
	"github.com/xhad/croprag/pkg/store"
)

func setupStore(t *testing.T) types.VectorStore {
	t.Helper()

	s, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{
		Backend:   store.BackendSQLite,
		URL:       filepath.Join(t.TempDir(), "ingest.db"),
		VectorDim: mock.DefaultDimension,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cropRows(n int) []models.CropRecord {
	crops := []string{"rice", "maize", "chickpea", "kidneybeans", "pigeonpeas"}
	records := make([]models.CropRecord, n)
	for i := range records {
		records[i] = models.CropRecord{
			Nitrogen:        float64(60 + i),
			Phosphorus:      42,
			Potassium:       43,
			Temperature:     21,
			Humidity:        82,
			PH:              6.5,
			RecommendedCrop: crops[i%len(crops)],
		}
	}
	return records
}

// recordingStore counts upserts and keeps their order.
type recordingStore struct {
	types.VectorStore
	mu      sync.Mutex
	batches [][]models.CropRecord
	failAt  int
}

func (r *recordingStore) UpsertBatch(ctx context.Context, records []models.CropRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt > 0 && len(r.batches)+1 == r.failAt {
		return errors.New("disk full")
	}
	r.batches = append(r.batches, records)
	return r.VectorStore.UpsertBatch(ctx, records)
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(setupStore(t), nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(setupStore(t), mock.NewMockEmbedder(), WithBatchSize(0))
	assert.Error(t, err)
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	base := setupStore(t)
	s := &recordingStore{VectorStore: base}
	embedder := mock.NewMockEmbedder()

	var progress []int
	p, err := NewPipeline(s, embedder,
		WithBatchSize(20),
		WithWorkers(4),
		WithProgress(func(stored, total int) {
			assert.Equal(t, 45, total)
			progress = append(progress, stored)
		}),
	)
	require.NoError(t, err)
	defer p.Release()

	records := cropRows(45)
	result, err := p.Run(ctx, records)
	require.NoError(t, err)

	assert.Equal(t, 45, result.Read)
	assert.Equal(t, 45, result.Stored)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, []int{20, 40, 45}, progress)
	assert.Equal(t, 3, embedder.CallCount())

	// batches are written in input order
	require.Len(t, s.batches, 3)
	assert.Equal(t, 60.0, s.batches[0][0].Nitrogen)
	assert.Equal(t, 80.0, s.batches[1][0].Nitrogen)
	assert.Equal(t, 100.0, s.batches[2][0].Nitrogen)

	for _, b := range s.batches {
		for _, r := range b {
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, embedder.Model(), r.Model)
			assert.Contains(t, r.Description, "Recommended Crop: "+r.RecommendedCrop+".")
			assert.Len(t, r.Embedding, mock.DefaultDimension)
		}
	}

	// the input slice is left untouched
	assert.Empty(t, records[0].ID)
	assert.Empty(t, records[0].Description)

	matches, err := base.Search(ctx, mock.TokenVector(s.batches[0][0].Description, mock.DefaultDimension), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, s.batches[0][0].Description, matches[0].SourceText)
}

func TestPipeline_AppendsByDefault(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	p, err := NewPipeline(s, mock.NewMockEmbedder())
	require.NoError(t, err)
	defer p.Release()

	for range 2 {
		_, err := p.Run(ctx, cropRows(3))
		require.NoError(t, err)
	}

	matches, err := s.Search(ctx, mock.TokenVector("Soil:", mock.DefaultDimension), 100)
	require.NoError(t, err)
	assert.Len(t, matches, 6)
}

func TestPipeline_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	p, err := NewPipeline(s, mock.NewMockEmbedder(), WithIdempotent(true))
	require.NoError(t, err)
	defer p.Release()

	for range 2 {
		_, err := p.Run(ctx, cropRows(3))
		require.NoError(t, err)
	}

	matches, err := s.Search(ctx, mock.TokenVector("Soil:", mock.DefaultDimension), 100)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestPipeline_EmbeddingError(t *testing.T) {
	ctx := context.Background()
	s := &recordingStore{VectorStore: setupStore(t)}
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("ollama unreachable")
	}

	p, err := NewPipeline(s, embedder, WithBatchSize(2))
	require.NoError(t, err)
	defer p.Release()

	result, err := p.Run(ctx, cropRows(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed batch 1")
	assert.Contains(t, err.Error(), "ollama unreachable")
	assert.Equal(t, 0, result.Stored)
	assert.Empty(t, s.batches)
}

func TestPipeline_UpsertErrorStopsRun(t *testing.T) {
	ctx := context.Background()
	s := &recordingStore{VectorStore: setupStore(t), failAt: 2}

	p, err := NewPipeline(s, mock.NewMockEmbedder(), WithBatchSize(2), WithWorkers(2))
	require.NoError(t, err)
	defer p.Release()

	result, err := p.Run(ctx, cropRows(6))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert batch 2: disk full")
	assert.Equal(t, 2, result.Stored)
	assert.Len(t, s.batches, 1)
}

func TestPipeline_EmptyInput(t *testing.T) {
	p, err := NewPipeline(setupStore(t), mock.NewMockEmbedder(), WithRateLimit(10))
	require.NoError(t, err)
	defer p.Release()

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stored)
}

// Package ingest embeds crop records and writes them to the vector store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/internal/types"
	"github.com/xhad/croprag/pkg/describe"
)

// recordNamespace seeds the name-based IDs used in idempotent mode.
var recordNamespace = uuid.MustParse("6f1c2a64-8a43-4b8e-9d4e-3b7f0f3c2d11")

// Pipeline orchestrates describing, embedding and storing crop records.
// Batches are embedded concurrently on a worker pool and written to the
// store in input order.
type Pipeline struct {
	store      types.VectorStore
	embedder   types.Embedder
	pool       *ants.Pool
	limiter    *rate.Limiter
	batchSize  int
	idempotent bool
	onProgress func(stored, total int)
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBatchSize sets how many records are embedded and upserted together.
// Default is 20.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithWorkers sets the number of batches embedded concurrently. Default is 1.
func WithWorkers(workers int) Option {
	return func(p *Pipeline) error {
		if workers < 1 {
			workers = 1
		}

		pool, err := ants.NewPool(workers)
		if err != nil {
			return err
		}

		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithRateLimit caps embedding requests at perSecond batches per second.
// Zero disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(p *Pipeline) error {
		if perSecond < 0 {
			return fmt.Errorf("rate limit cannot be negative")
		}
		if perSecond == 0 {
			p.limiter = nil
			return nil
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		return nil
	}
}

// WithIdempotent derives record IDs from their description, so running the
// same dataset twice updates rows in place instead of appending duplicates.
func WithIdempotent(idempotent bool) Option {
	return func(p *Pipeline) error {
		p.idempotent = idempotent
		return nil
	}
}

// WithProgress registers a callback invoked after every stored batch.
func WithProgress(fn func(stored, total int)) Option {
	return func(p *Pipeline) error {
		p.onProgress = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store types.VectorStore, embedder types.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		store:     store,
		embedder:  embedder,
		batchSize: 20,
		logger:    slog.Default(),
	}

	for _, opt := range append([]Option{WithWorkers(1)}, opts...) {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	p.logger = p.logger.With("component", "ingest")
	return p, nil
}

// Result summarises an ingestion run.
type Result struct {
	Read    int
	Stored  int
	Batches int
	Elapsed time.Duration
}

type batch struct {
	records []models.CropRecord
	done    chan struct{}
	err     error
}

// Run ensures the collection exists, then describes, embeds and upserts all
// records. The first failing batch aborts the run.
func (p *Pipeline) Run(ctx context.Context, records []models.CropRecord) (*Result, error) {
	start := time.Now()
	result := &Result{Read: len(records)}

	if err := p.store.EnsureCollection(ctx); err != nil {
		return result, fmt.Errorf("ensure collection: %w", err)
	}

	if len(records) == 0 {
		p.logger.Warn("no records to ingest")
		result.Elapsed = time.Since(start)
		return result, nil
	}

	prepared := p.prepare(records)
	batches := p.split(prepared)
	result.Batches = len(batches)

	p.logger.Info("ingesting records",
		"records", len(prepared),
		"batches", len(batches),
		"model", p.embedder.Model(),
		"idempotent", p.idempotent)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for _, b := range batches {
			if err := p.pool.Submit(func() {
				defer close(b.done)
				b.err = p.embed(ctx, b.records)
			}); err != nil {
				b.err = err
				close(b.done)
			}
		}
	}()

	var runErr error
	for i, b := range batches {
		<-b.done
		if runErr != nil {
			continue
		}

		if b.err != nil {
			runErr = fmt.Errorf("embed batch %d: %w", i+1, b.err)
			cancel()
			continue
		}

		if err := p.store.UpsertBatch(ctx, b.records); err != nil {
			runErr = fmt.Errorf("upsert batch %d: %w", i+1, err)
			cancel()
			continue
		}

		result.Stored += len(b.records)
		p.logger.Debug("batch stored", "batch", i+1, "stored", result.Stored)
		if p.onProgress != nil {
			p.onProgress(result.Stored, len(prepared))
		}
	}

	result.Elapsed = time.Since(start)
	if runErr != nil {
		return result, runErr
	}

	p.logger.Info("ingestion complete", "stored", result.Stored, "elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// prepare renders descriptions and assigns IDs and the model name.
func (p *Pipeline) prepare(records []models.CropRecord) []models.CropRecord {
	model := p.embedder.Model()
	prepared := make([]models.CropRecord, len(records))
	for i, r := range records {
		r.Description = describe.Record(r)
		r.Model = model
		if p.idempotent {
			r.ID = uuid.NewSHA1(recordNamespace, []byte(r.Description)).String()
		} else {
			r.ID = uuid.NewString()
		}
		prepared[i] = r
	}
	return prepared
}

func (p *Pipeline) split(records []models.CropRecord) []*batch {
	var batches []*batch
	for start := 0; start < len(records); start += p.batchSize {
		end := min(start+p.batchSize, len(records))
		batches = append(batches, &batch{
			records: records[start:end],
			done:    make(chan struct{}),
		})
	}
	return batches
}

func (p *Pipeline) embed(ctx context.Context, records []models.CropRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Description
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(records), len(vectors))
	}

	for i := range records {
		records[i].Embedding = vectors[i]
	}
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

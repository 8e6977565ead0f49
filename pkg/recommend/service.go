// Package recommend answers soil queries: it renders the query with the
// ingestion template, embeds it, searches the store and aggregates the
// nearest records into a recommendation.
package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/internal/types"
	"github.com/xhad/croprag/pkg/describe"
)

const tracerName = "pkg/recommend"

// Explainer produces a free-text rationale for a recommendation.
type Explainer interface {
	Explain(ctx context.Context, question, summary string, matches []models.MatchResult) (string, error)
}

// Service is the recommendation service. It holds no per-request state and
// is safe for concurrent use when its store and embedder are.
type Service struct {
	store     types.VectorStore
	embedder  types.Embedder
	explainer Explainer
	topK      int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTopK sets the number of neighbours retrieved per query. Default is 5.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithExplainer adds an LLM explanation to successful recommendations.
func WithExplainer(e Explainer) Option {
	return func(s *Service) {
		s.explainer = e
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store types.VectorStore, embedder types.Embedder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Service{
		store:    store,
		embedder: embedder,
		topK:     5,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "recommend")
	return s, nil
}

// TopK returns the configured neighbour count.
func (s *Service) TopK() int {
	return s.topK
}

// Recommend runs one query. The question is embedded exactly as given, so
// callers apply models.DefaultQuestion when the user supplied none. An empty
// search is not an error: it yields a recommendation with StatusError.
// Embedding and store failures are returned.
func (s *Service) Recommend(ctx context.Context, q models.SoilQuery) (*Recommendation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "recommend")
	defer span.End()

	summary := describe.Query(q)

	vector, err := s.embedder.EmbedText(ctx, summary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.Search(ctx, vector, s.topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("search: %w", err)
	}

	rec := Aggregate(summary, matches)
	span.SetAttributes(
		attribute.Int("recommend.top_k", s.topK),
		attribute.Int("recommend.matches", len(matches)),
		attribute.String("recommend.best_crop", rec.BestCrop),
	)
	s.logger.Debug("query answered", "matches", len(matches), "best_crop", rec.BestCrop)

	if rec.Status == StatusSuccess && s.explainer != nil {
		explanation, err := s.explainer.Explain(ctx, q.Question, summary, matches)
		if err != nil {
			s.logger.Warn("explanation failed", "err", err)
		} else {
			rec.Explanation = explanation
		}
	}

	return &rec, nil
}

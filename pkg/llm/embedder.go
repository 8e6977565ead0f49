package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// checkText is embedded once at construction to check the backend.
const checkText = "Soil: N=0 ppm, P=0 ppm, K=0 ppm, pH=7, Temp=20C, Humidity=50%."

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL or OpenAI-compatible API root
	APIKey    string
	Dimension int
	BatchSize int
}

// Embedder turns description text into vectors through langchaingo.
type Embedder struct {
	config   EmbedderConfig
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewEmbedderWithConfig builds an embedder and embeds one sample text to check the backend.
// It fails when the backend is unreachable or its vectors do not have the
// configured dimension.
func NewEmbedderWithConfig(ctx context.Context, config EmbedderConfig) (*Embedder, error) {
	// Validate and set default values for config fields if necessary
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "all-minilm" // Ollama build of all-MiniLM-L6-v2
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Dimension < 0 {
		return nil, fmt.Errorf("dimension cannot be negative")
	}

	client, err := newClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	e := &Embedder{
		config:   config,
		embedder: embedder,
		logger: slog.Default().With(
			"component", "embedder",
			"provider", config.Provider,
			"model", config.Model,
		),
	}

	if err := e.check(ctx); err != nil {
		return nil, err
	}

	return e, nil
}

func newClient(config EmbedderConfig) (embeddings.EmbedderClient, error) {
	switch config.Provider {
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		return ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
	case ProviderOpenAI:
		// Local OpenAI-compatible services accept any token
		token := config.APIKey
		if token == "" {
			token = "none"
		}
		opts := []openai.Option{
			openai.WithToken(token),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
	}
}

func (e *Embedder) check(ctx context.Context) error {
	vector, err := e.EmbedText(ctx, checkText)
	if err != nil {
		return fmt.Errorf("embedding backend unavailable: %w", err)
	}

	if e.config.Dimension > 0 && len(vector) != e.config.Dimension {
		return fmt.Errorf("%w: model %s produces %d dimensions, configured %d",
			ErrDimensionMismatch, e.config.Model, len(vector), e.config.Dimension)
	}

	e.logger.Debug("embedding backend ready", "dimension", len(vector))
	return nil
}

// Model returns the name of the embedding model.
func (e *Embedder) Model() string {
	return e.config.Model
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in batches.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vectors))
	}

	return vectors, nil
}

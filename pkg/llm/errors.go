package llm

import "errors"

var (
	// ErrDimensionMismatch is returned when the embedding backend produces
	// vectors of a different length than configured.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding is returned when the backend answers without a vector.
	ErrEmptyEmbedding = errors.New("embedder returned no vectors")

	// ErrUnknownProvider is returned for an embedding provider other than
	// ollama or openai.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

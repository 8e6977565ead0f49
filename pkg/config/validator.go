package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Embedding config
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q, must be ollama or openai", c.Embedding.Provider),
		})
	}

	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding base URL is required",
		})
	} else if u, err := url.Parse(c.Embedding.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid embedding base URL",
		})
	}

	if c.Embedding.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}

	if c.Embedding.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimension",
			Message: "dimension must be positive",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Store config
	switch c.Store.Backend {
	case BackendPgVector, BackendQdrant, BackendSQLite:
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q, must be pgvector, qdrant or sqlite", c.Store.Backend),
		})
	}

	if c.Store.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "store.url",
			Message: "store URL is required",
		})
	} else if c.Store.Backend == BackendPgVector {
		if u, err := url.Parse(c.Store.URL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid database URL",
			})
		}
	}

	if !collectionName.MatchString(c.Store.Collection) {
		errors = append(errors, ValidationError{
			Field:   "store.collection",
			Message: "collection must start with a letter or underscore and contain only letters, digits and underscores",
		})
	}

	// Validate Search config
	if c.Search.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.top_k",
			Message: "top_k must be positive",
		})
	}

	// Validate Ingest config
	switch c.Ingest.Delimiter {
	case `\t`, "tab", "comma":
	default:
		if utf8.RuneCountInString(c.Ingest.Delimiter) != 1 {
			errors = append(errors, ValidationError{
				Field:   "ingest.delimiter",
				Message: "delimiter must be a single character",
			})
		}
	}

	if c.Ingest.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Ingest.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.workers",
			Message: "workers must be positive",
		})
	}

	if c.Ingest.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "ingest.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	// Validate LLM config only when explanations are turned on
	if c.LLM.Enabled {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil || c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid Ollama base URL",
			})
		}

		if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
			errors = append(errors, ValidationError{
				Field:   "llm.max_tokens",
				Message: "max_tokens must be between 1 and 4096",
			})
		}

		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			errors = append(errors, ValidationError{
				Field:   "llm.temperature",
				Message: "temperature must be between 0 and 2",
			})
		}
	}

	// Validate Log config
	// Matched case-insensitively, as the CLI's logger setup does
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid log level %q: must be one of debug, info, warn, error", c.Log.Level),
		})
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid log format %q: must be text or json", c.Log.Format),
		})
	}

	return errors
}

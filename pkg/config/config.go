package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	BackendPgVector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendSQLite   = "sqlite"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"`
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
}

type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

type IngestConfig struct {
	Path       string  `yaml:"path"`
	Delimiter  string  `yaml:"delimiter"`
	BatchSize  int     `yaml:"batch_size"`
	Workers    int     `yaml:"workers"`
	RateLimit  float64 `yaml:"rate_limit"` // embedding batches per second, 0 disables
	Idempotent bool    `yaml:"idempotent"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	CORSOrigin  string `yaml:"cors_origin"`
	ServiceName string `yaml:"service_name"`
}

type LLMConfig struct {
	Enabled     bool    `yaml:"enabled"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Log       LogConfig       `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/croprag/config.yaml"),
			"/etc/croprag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// DefaultStoreURL returns the address used when store.url is unset.
func DefaultStoreURL(backend string) string {
	switch backend {
	case BackendQdrant:
		return "localhost:6334"
	case BackendSQLite:
		return "croprag.db"
	default:
		return "postgres://localhost:5432/croprag"
	}
}

func applyDefaults(config *Config) {
	if config.Embedding.Provider == "" {
		config.Embedding.Provider = ProviderOllama
	}
	if config.Embedding.BaseURL == "" {
		if config.Embedding.Provider == ProviderOpenAI {
			config.Embedding.BaseURL = "https://api.openai.com/v1"
		} else {
			config.Embedding.BaseURL = "http://localhost:11434"
		}
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "all-minilm"
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 384
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 32
	}

	if config.Store.Backend == "" {
		config.Store.Backend = BackendPgVector
	}
	if config.Store.URL == "" {
		config.Store.URL = DefaultStoreURL(config.Store.Backend)
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "CropRow"
	}

	if config.Search.TopK == 0 {
		config.Search.TopK = 5
	}

	if config.Ingest.Path == "" {
		config.Ingest.Path = "Updated_Crop_Recommendation_with_Disease_Info.csv"
	}
	if config.Ingest.Delimiter == "" {
		config.Ingest.Delimiter = "\t"
	}
	if config.Ingest.BatchSize == 0 {
		config.Ingest.BatchSize = 20
	}
	if config.Ingest.Workers == 0 {
		config.Ingest.Workers = 1
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}
	if config.Server.CORSOrigin == "" {
		config.Server.CORSOrigin = "*"
	}
	if config.Server.ServiceName == "" {
		config.Server.ServiceName = "croprag"
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 512
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func mergeWithEnv(config *Config) {
	if backend := os.Getenv("CROPRAG_STORE_BACKEND"); backend != "" {
		config.Store.Backend = backend
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.Embedding.Provider == "" || config.Embedding.Provider == ProviderOllama {
			config.Embedding.BaseURL = baseURL
		}
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	switch config.Store.Backend {
	case "", BackendPgVector:
		if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
			config.Store.URL = dbURL
		}
	case BackendQdrant:
		if qdrantURL := os.Getenv("QDRANT_URL"); qdrantURL != "" {
			config.Store.URL = qdrantURL
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}

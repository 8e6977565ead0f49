package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/pkg/describe"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string // Ollama server URL
}

// ChatEngine explains crop recommendations with an LLM. It never changes
// which crop is recommended.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := withChatDefaults(config)
	if err != nil {
		return nil, err
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewWithModel creates a ChatEngine on top of an existing llms.Model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	config, err := withChatDefaults(config)
	if err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: model}, nil
}

func withChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return config, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are an agronomy assistant. Explain crop recommendations using only the soil records provided. Be brief and concrete."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Query: %s\n\nRecommended crop: %s\n\nMost similar soil records:\n%s\nQuestion: %s"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	return config, nil
}

// Explain asks the model why the top match fits the queried soil.
func (ce *ChatEngine) Explain(ctx context.Context, question, summary string, matches []models.MatchResult) (string, error) {
	if len(matches) == 0 {
		return "", fmt.Errorf("no matches to explain")
	}

	prompt := fmt.Sprintf(ce.config.ContextTemplate,
		summary, matches[0].RecommendedCrop, formatMatches(matches), question)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", fmt.Errorf("chat error: no response from LLM")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

// formatMatches renders the matches as a numbered list for the prompt.
func formatMatches(matches []models.MatchResult) string {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s (distance %s)\n", i+1, m.SourceText, describe.Number(m.Distance))
	}
	return b.String()
}

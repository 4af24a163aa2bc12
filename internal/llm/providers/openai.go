package providers

import (
	"os"

	"github.com/tmc/langchaingo/llms/openai"
	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/llm"
)

// NewOpenAIProvider creates a provider for OpenAI models, or any service
// exposing an OpenAI-compatible API via BaseURL.
func NewOpenAIProvider(cfg config.ProviderConfig) (llm.Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, llm.NewAuthError("openai", nil)
	}

	opts := []openai.Option{openai.WithToken(apiKey)}
	if cfg.DefaultModel != "" {
		opts = append(opts, openai.WithModel(cfg.DefaultModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, llm.TranslateError("openai", err)
	}

	return &langchainProvider{
		name:   "openai",
		client: client,
		models: []llm.ModelInfo{
			{
				Name:          "gpt-4o",
				ContextWindow: 128000,
				MaxOutput:     16384,
				Features:      []string{"chat", "streaming", "tools", "json_mode"},
			},
			{
				Name:          "gpt-4o-mini",
				ContextWindow: 128000,
				MaxOutput:     16384,
				Features:      []string{"chat", "streaming", "tools", "json_mode"},
			},
		},
	}, nil
}

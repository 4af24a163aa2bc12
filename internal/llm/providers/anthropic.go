package providers

import (
	"os"

	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/llm"
)

// NewAnthropicProvider creates a provider for Anthropic's Claude models.
func NewAnthropicProvider(cfg config.ProviderConfig) (llm.Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, llm.NewAuthError("anthropic", nil)
	}

	opts := []anthropic.Option{anthropic.WithToken(apiKey)}
	if cfg.DefaultModel != "" {
		opts = append(opts, anthropic.WithModel(cfg.DefaultModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, llm.TranslateError("anthropic", err)
	}

	return &langchainProvider{
		name:   "anthropic",
		client: client,
		models: []llm.ModelInfo{
			{
				Name:          "claude-sonnet-4-20250514",
				ContextWindow: 200000,
				MaxOutput:     8192,
				Features:      []string{"chat", "streaming", "tools", "json_mode"},
			},
			{
				Name:          "claude-3-haiku-20240307",
				ContextWindow: 200000,
				MaxOutput:     4096,
				Features:      []string{"chat", "streaming", "tools", "json_mode"},
			},
		},
	}, nil
}

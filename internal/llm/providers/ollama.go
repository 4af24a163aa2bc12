package providers

import (
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/llm"
)

// NewOllamaProvider creates a provider for a local Ollama runtime. This is
// the typical default provider; hosted providers serve as escalation
// targets.
func NewOllamaProvider(cfg config.ProviderConfig) (llm.Provider, error) {
	opts := []ollama.Option{}
	if cfg.DefaultModel != "" {
		opts = append(opts, ollama.WithModel(cfg.DefaultModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, llm.TranslateError("ollama", err)
	}

	return &langchainProvider{
		name:   "ollama",
		client: client,
		models: []llm.ModelInfo{
			{
				Name:          cfg.DefaultModel,
				ContextWindow: 32768,
				MaxOutput:     8192,
				Features:      []string{"chat", "streaming", "tools"},
			},
		},
	}, nil
}

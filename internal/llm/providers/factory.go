package providers

import (
	"fmt"

	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/llm"
)

// NewProvider creates a model provider by name.
func NewProvider(name string, cfg config.ProviderConfig) (llm.Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", name)
	}
}

// BuildRegistry constructs a registry from the model gateway configuration.
// A provider whose credentials are missing is skipped rather than fatal so
// a local-only deployment does not require hosted API keys.
func BuildRegistry(cfg config.LLMConfig) (*llm.Registry, error) {
	registry := llm.NewRegistry()

	for name, providerCfg := range cfg.Providers {
		p, err := NewProvider(name, providerCfg)
		if err != nil {
			if name != cfg.DefaultProvider {
				continue
			}
			return nil, fmt.Errorf("default provider %s: %w", name, err)
		}
		registry.Register(p)
	}

	if !registry.Has(cfg.DefaultProvider) {
		return nil, fmt.Errorf("default provider %q is not configured", cfg.DefaultProvider)
	}
	return registry, nil
}

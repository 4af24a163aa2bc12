package llm

import (
	"context"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Provider defines the interface all model providers implement. It is a
// unified abstraction over hosted services (Anthropic, OpenAI) and local
// runtimes (Ollama).
type Provider interface {
	// Name returns the provider name (e.g., "anthropic", "ollama").
	Name() string

	// Models returns information about the models this provider serves.
	Models(ctx context.Context) ([]ModelInfo, error)

	// Complete sends a completion request and blocks for the full response.
	// With req.Tools set the model may answer with text, tool calls, or both.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream sends a completion request and emits StreamChunk items until
	// completion or error. The channel is closed when streaming ends.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// Health checks connectivity to the provider.
	Health(ctx context.Context) types.HealthStatus
}

// ModelInfo contains metadata about a model.
type ModelInfo struct {
	Name          string   `json:"name"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output"`
	Features      []string `json:"features"`
}

// SupportsFeature checks if the model supports a given feature.
func (m ModelInfo) SupportsFeature(feature string) bool {
	for _, f := range m.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// SupportsToolUse checks if the model supports tool calling.
func (m ModelInfo) SupportsToolUse() bool {
	return m.SupportsFeature("tools")
}

// SupportsStreaming checks if the model supports streaming responses.
func (m ModelInfo) SupportsStreaming() bool {
	return m.SupportsFeature("streaming")
}

package providers

import (
	"context"
	"sync/atomic"

	"github.com/tmc/langchaingo/llms"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/types"
)

// langchainProvider adapts any langchaingo model client to the Provider
// interface. The hosted and local providers differ only in construction.
type langchainProvider struct {
	name   string
	client llms.Model
	models []llm.ModelInfo
}

var _ llm.Provider = (*langchainProvider)(nil)

func (p *langchainProvider) Name() string {
	return p.name
}

func (p *langchainProvider) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	return p.models, nil
}

func (p *langchainProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.GenerateContent(ctx, toSchemaMessages(req.Messages), buildCallOptions(req)...)
	if err != nil {
		return nil, llm.TranslateError(p.name, err)
	}
	return fromLangchainResponse(resp, req.Model), nil
}

// Stream forwards langchaingo's streaming callback onto a chunk channel.
// The final response is folded into terminal chunks so tool calls, usage,
// and content a backend returns without streaming all survive.
func (p *langchainProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	chunkChan := make(chan llm.StreamChunk, 10)

	var streamed atomic.Bool
	messages := toSchemaMessages(req.Messages)
	callOpts := buildStreamingCallOptions(req, func(ctx context.Context, chunk []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunkChan <- llm.StreamChunk{Delta: llm.StreamDelta{Content: string(chunk)}}:
			if len(chunk) > 0 {
				streamed.Store(true)
			}
			return nil
		}
	})

	go func() {
		defer close(chunkChan)

		resp, err := p.client.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			select {
			case chunkChan <- llm.StreamChunk{Error: llm.TranslateError(p.name, err)}:
			case <-ctx.Done():
			}
			return
		}

		final := fromLangchainResponse(resp, req.Model)
		if final.Message.Content != "" && !streamed.Load() {
			select {
			case chunkChan <- llm.StreamChunk{Delta: llm.StreamDelta{Content: final.Message.Content}}:
			case <-ctx.Done():
				return
			}
		}
		for i := range final.Message.ToolCalls {
			tc := final.Message.ToolCalls[i]
			select {
			case chunkChan <- llm.StreamChunk{Delta: llm.StreamDelta{ToolCall: &tc}}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case chunkChan <- llm.StreamChunk{Done: true, Usage: &final.Usage}:
		case <-ctx.Done():
		}
	}()

	return chunkChan, nil
}

func (p *langchainProvider) Health(ctx context.Context) types.HealthStatus {
	if p.client == nil {
		return types.NewHealthStatus(types.HealthStateUnhealthy, "client not initialized")
	}
	return types.NewHealthStatus(types.HealthStateHealthy, "")
}

package providers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/types"
)

// MockResponse scripts one reply from the mock provider.
type MockResponse struct {
	Content   string
	ToolCalls []llm.ToolCall
	Err       error

	// Stall makes Stream emit the first chunk and then go silent until the
	// caller cancels, exercising the token watchdog.
	Stall bool
}

// MockProvider is a scripted Provider for tests. Responses are consumed in
// order; the last one repeats once the script runs out.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	idx       int
	calls     []llm.CompletionRequest
}

var _ llm.Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider with a single "ok" response.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	if len(responses) == 0 {
		responses = []MockResponse{{Content: "ok"}}
	}
	return &MockProvider{responses: responses}
}

// Enqueue appends responses to the script.
func (p *MockProvider) Enqueue(responses ...MockResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, responses...)
}

// Calls returns a copy of every request the provider has received.
func (p *MockProvider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest{}, p.calls...)
}

func (p *MockProvider) next(req llm.CompletionRequest) MockResponse {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)
	resp := p.responses[min(p.idx, len(p.responses)-1)]
	p.idx++
	return resp
}

func (p *MockProvider) Name() string {
	return "mock"
}

func (p *MockProvider) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{
		{
			Name:          "mock-model",
			ContextWindow: 32768,
			MaxOutput:     8192,
			Features:      []string{"chat", "streaming", "tools"},
		},
	}, nil
}

func (p *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return p.respond(req)
}

func (p *MockProvider) respond(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp := p.next(req)
	if resp.Err != nil {
		return nil, resp.Err
	}

	out := &llm.CompletionResponse{
		ID:    uuid.New().String(),
		Model: "mock-model",
		Message: llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		},
		FinishReason: llm.FinishReasonStop,
		Usage: llm.TokenUsage{
			PromptTokens:     llm.EstimateMessages(req.Messages),
			CompletionTokens: llm.EstimateTokens(resp.Content),
		},
	}
	out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	if len(resp.ToolCalls) > 0 {
		out.FinishReason = llm.FinishReasonToolCalls
	}
	return out, nil
}

// Stream emits the scripted content in small chunks. A stalling response
// sends one chunk and then blocks until the context is cancelled.
func (p *MockProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	resp := p.next(req)
	chunkChan := make(chan llm.StreamChunk, 10)

	go func() {
		defer close(chunkChan)

		if resp.Err != nil {
			chunkChan <- llm.StreamChunk{Error: resp.Err}
			return
		}

		const size = 8
		content := resp.Content
		sent := 0
		for len(content) > 0 {
			n := min(size, len(content))
			select {
			case chunkChan <- llm.StreamChunk{Delta: llm.StreamDelta{Content: content[:n]}}:
			case <-ctx.Done():
				return
			}
			content = content[n:]
			sent++

			if resp.Stall && sent == 1 {
				<-ctx.Done()
				return
			}
		}

		if resp.Stall && sent == 0 {
			<-ctx.Done()
			return
		}

		for i := range resp.ToolCalls {
			tc := resp.ToolCalls[i]
			select {
			case chunkChan <- llm.StreamChunk{Delta: llm.StreamDelta{ToolCall: &tc}}:
			case <-ctx.Done():
				return
			}
		}

		usage := llm.TokenUsage{
			PromptTokens:     llm.EstimateMessages(req.Messages),
			CompletionTokens: llm.EstimateTokens(resp.Content),
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		select {
		case chunkChan <- llm.StreamChunk{Done: true, Usage: &usage}:
		case <-ctx.Done():
		}
	}()

	return chunkChan, nil
}

func (p *MockProvider) Health(ctx context.Context) types.HealthStatus {
	return types.NewHealthStatus(types.HealthStateHealthy, "")
}

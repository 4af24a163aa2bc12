package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/llm/providers"
	"github.com/zero-day-ai/conductor/internal/types"
)

func TestRegistry_GetUnknown(t *testing.T) {
	registry := llm.NewRegistry()

	_, err := registry.Get("missing")
	require.Error(t, err)
	assert.Equal(t, types.MODEL_UNAVAILABLE, types.CodeOf(err))
}

func TestRegistry_RegisterAndList(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(providers.NewMockProvider())

	assert.True(t, registry.Has("mock"))
	assert.Equal(t, []string{"mock"}, registry.List())

	health := registry.Health(context.Background())
	assert.True(t, health["mock"].IsHealthy())
}

func TestGateway_Complete(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(providers.NewMockProvider(providers.MockResponse{Content: "routed answer"}))

	gw := llm.NewGateway(registry, "mock", "")

	resp, err := gw.Complete(context.Background(),
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}})
	require.NoError(t, err)
	assert.Equal(t, "routed answer", resp.Message.Content)
}

func TestGateway_CompleteTools_ToolCallOnlyIsValid(t *testing.T) {
	p := providers.NewMockProvider(providers.MockResponse{
		ToolCalls: []llm.ToolCall{{ID: "tc-1", Name: "classify_request", Arguments: `{"category":"advice"}`}},
	})
	registry := llm.NewRegistry()
	registry.Register(p)

	gw := llm.NewGateway(registry, "mock", "")

	resp, err := gw.CompleteTools(context.Background(),
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		[]llm.ToolDef{{Name: "classify_request"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "classify_request", resp.Message.ToolCalls[0].Name)

	calls := p.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, "classify_request", calls[0].Tools[0].Name)
}

func TestGateway_CompleteTools_StalledCallTimesOut(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(providers.NewMockProvider(providers.MockResponse{Stall: true}))

	gw := llm.NewGateway(registry, "mock", "", llm.WithLiveness(llm.LivenessConfig{
		HeartbeatWindow: 50 * time.Millisecond,
		MonitorTick:     5 * time.Millisecond,
		Retries:         1,
	}))

	start := time.Now()
	_, err := gw.CompleteTools(context.Background(),
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		[]llm.ToolDef{{Name: "classify_request"}})

	require.Error(t, err)
	assert.Equal(t, types.LIVENESS_TIMEOUT, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
	// The missing-token window fires, not a transport deadline.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGateway_CompleteTools_EmptyResponse(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(providers.NewMockProvider(providers.MockResponse{}))

	gw := llm.NewGateway(registry, "mock", "")

	_, err := gw.CompleteTools(context.Background(),
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}}, nil)
	require.Error(t, err)
	assert.Equal(t, types.MODEL_RESPONSE_EMPTY, types.CodeOf(err))
}

func TestGateway_Escalation(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(providers.NewMockProvider())

	gw := llm.NewGateway(registry, "mock", "anthropic")
	// Escalation target configured but not registered: no credential.
	assert.False(t, gw.CanEscalate())

	registry.Register(providers.NewMockProvider())
	noEscalation := llm.NewGateway(registry, "mock", "")
	assert.False(t, noEscalation.CanEscalate())

	withEscalation := llm.NewGateway(registry, "mock", "mock")
	assert.True(t, withEscalation.CanEscalate())

	resp, err := withEscalation.Escalate(context.Background(),
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}})
	require.NoError(t, err)
	assert.True(t, resp.HasPayload())
}

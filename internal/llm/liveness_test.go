package llm_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/llm/providers"
	"github.com/zero-day-ai/conductor/internal/types"
)

func fastLiveness(retries int) llm.LivenessConfig {
	return llm.LivenessConfig{
		HeartbeatWindow: 50 * time.Millisecond,
		MonitorTick:     5 * time.Millisecond,
		Retries:         retries,
	}
}

func TestCompleteLive_HealthyStream(t *testing.T) {
	p := providers.NewMockProvider(providers.MockResponse{Content: "a streamed answer"})

	resp, err := llm.CompleteLive(context.Background(), p,
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		fastLiveness(0), nil)
	require.NoError(t, err)
	assert.Equal(t, "a streamed answer", resp.Message.Content)
	assert.True(t, resp.HasPayload())
}

func TestCompleteLive_StalledStreamTimesOut(t *testing.T) {
	p := providers.NewMockProvider(providers.MockResponse{
		Content: strings.Repeat("token ", 20),
		Stall:   true,
	})

	start := time.Now()
	_, err := llm.CompleteLive(context.Background(), p,
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		fastLiveness(0), nil)

	require.Error(t, err)
	assert.Equal(t, types.LIVENESS_TIMEOUT, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
	// Death comes from the missing-token window, well before any
	// generous wall-clock deadline would fire.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCompleteLive_RetriesThenSucceeds(t *testing.T) {
	p := providers.NewMockProvider(
		providers.MockResponse{Content: "stalling...", Stall: true},
		providers.MockResponse{Content: "recovered answer"},
	)

	resp, err := llm.CompleteLive(context.Background(), p,
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		fastLiveness(1), nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", resp.Message.Content)
	assert.Len(t, p.Calls(), 2)
}

func TestCompleteLive_RetriesExhausted(t *testing.T) {
	p := providers.NewMockProvider(providers.MockResponse{Content: "x", Stall: true})

	_, err := llm.CompleteLive(context.Background(), p,
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		fastLiveness(2), nil)

	require.Error(t, err)
	assert.Equal(t, types.LIVENESS_TIMEOUT, types.CodeOf(err))
	assert.Len(t, p.Calls(), 3)
}

func TestCompleteLive_CallerCancel(t *testing.T) {
	p := providers.NewMockProvider(providers.MockResponse{Content: "x", Stall: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := llm.CompleteLive(ctx, p,
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		fastLiveness(5), nil)

	require.Error(t, err)
	// Deliberate cancellation is not retried.
	assert.LessOrEqual(t, len(p.Calls()), 1)
}

func TestCompleteLive_EmptyResponse(t *testing.T) {
	p := providers.NewMockProvider(providers.MockResponse{Content: ""})

	_, err := llm.CompleteLive(context.Background(), p,
		llm.CompletionRequest{Messages: []llm.Message{llm.NewUserMessage("q")}},
		fastLiveness(0), nil)

	require.Error(t, err)
	assert.Equal(t, types.MODEL_RESPONSE_EMPTY, types.CodeOf(err))
}

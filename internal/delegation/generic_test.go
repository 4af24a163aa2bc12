package delegation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/llm/providers"
)

func newMockGateway(responses ...providers.MockResponse) (*llm.Gateway, *providers.MockProvider) {
	p := providers.NewMockProvider(responses...)
	registry := llm.NewRegistry()
	registry.Register(p)
	return llm.NewGateway(registry, "mock", ""), p
}

func TestGenericAgent_Handle(t *testing.T) {
	gateway, p := newMockGateway(providers.MockResponse{Content: "the answer"})
	agent := NewGenericAgent(gateway, 0)

	msg := rootMessage("generic")
	msg.Context = "background facts"
	msg.Constraints = []string{"no pushes"}

	out, err := agent.Handle(context.Background(), msg, nil)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "the answer", out.Result)
	assert.True(t, out.NeedsVerification)

	calls := p.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[1].Content
	assert.Contains(t, prompt, "background facts")
	assert.Contains(t, prompt, "no pushes")
}

func TestSynthesizer_NamesFailedMembers(t *testing.T) {
	gateway, p := newMockGateway(providers.MockResponse{Content: "combined answer"})
	synthesizer := NewSynthesizer(gateway)

	result, err := synthesizer.Synthesize(context.Background(), "build the report", []*AgentOutput{
		{Agent: "researcher", Success: true, Result: "found 3 sources"},
		{Agent: "writer", Success: false, Error: "stalled"},
	})
	require.NoError(t, err)
	assert.Equal(t, "combined answer", result)

	prompt := p.Calls()[0].Messages[1].Content
	assert.Contains(t, prompt, "found 3 sources")
	assert.Contains(t, prompt, "writer FAILED: stalled")
}

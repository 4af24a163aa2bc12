package delegation

import (
	"context"
	"fmt"
	"strings"

	"github.com/zero-day-ai/conductor/internal/llm"
)

// Synthesizer folds the outputs of a delegation run into one coherent
// answer before finalize.
type Synthesizer struct {
	gateway *llm.Gateway
}

// NewSynthesizer creates a synthesizer over the model gateway.
func NewSynthesizer(gateway *llm.Gateway) *Synthesizer {
	return &Synthesizer{gateway: gateway}
}

// Synthesize combines member summaries into a final result. Failed members
// are named, not hidden; the caller sees what part of the work is missing.
func (s *Synthesizer) Synthesize(ctx context.Context, objective string, outputs []*AgentOutput) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Objective:\n%s\n\nAgent results:\n", objective)
	for _, out := range outputs {
		if out.Success {
			fmt.Fprintf(&sb, "- %s: %s\n", out.Agent, out.Summary())
		} else {
			fmt.Fprintf(&sb, "- %s FAILED: %s\n", out.Agent, out.Error)
		}
	}

	resp, err := s.gateway.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.NewSystemMessage("Combine the agent results into one coherent answer to the objective. Mention explicitly any part that failed."),
			llm.NewUserMessage(sb.String()),
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

package delegation

import (
	"context"
	"fmt"
	"strings"

	"github.com/zero-day-ai/conductor/internal/llm"
)

// GenericAgent answers any delegation with one model call over the
// token-budgeted context slice. It is the registry fallback; its outputs
// are always flagged for verification.
type GenericAgent struct {
	gateway       *llm.Gateway
	contextBudget int
}

// NewGenericAgent creates the fallback agent. A non-positive budget
// defaults to 12000 tokens.
func NewGenericAgent(gateway *llm.Gateway, contextBudget int) *GenericAgent {
	if contextBudget <= 0 {
		contextBudget = 12000
	}
	return &GenericAgent{gateway: gateway, contextBudget: contextBudget}
}

func (a *GenericAgent) Name() string {
	return "generic"
}

func (a *GenericAgent) Handle(ctx context.Context, msg Message, _ Subdelegator) (*AgentOutput, error) {
	var sb strings.Builder
	sb.WriteString("Task: " + msg.TaskSummary + "\n")
	if msg.ExpectedOutput != "" {
		sb.WriteString("Expected output: " + msg.ExpectedOutput + "\n")
	}
	for _, constraint := range msg.Constraints {
		sb.WriteString("Constraint: " + constraint + "\n")
	}
	if msg.ResponseLanguage != "" {
		sb.WriteString("Respond in: " + msg.ResponseLanguage + "\n")
	}
	if msg.Context != "" {
		fmt.Fprintf(&sb, "\nContext:\n%s\n", msg.Context)
	}

	messages := llm.TrimHistory([]llm.Message{
		llm.NewSystemMessage("You are a general-purpose worker agent. Complete the task using only the provided context."),
		llm.NewUserMessage(sb.String()),
	}, a.contextBudget)

	resp, err := a.gateway.Complete(ctx, llm.CompletionRequest{Messages: messages})
	if err != nil {
		return nil, err
	}

	return &AgentOutput{
		DelegationID:      msg.ID,
		Agent:             a.Name(),
		Success:           true,
		Result:            resp.Message.Content,
		Confidence:        0.5,
		NeedsVerification: true,
	}, nil
}

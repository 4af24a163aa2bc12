package delegation

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/zero-day-ai/conductor/internal/types"
)

const (
	// MaxDepth bounds the delegation chain; the root message is depth 0.
	MaxDepth = 4

	// SummaryLimit caps what threads back into plan state. Full outputs
	// go to the checkpoint store, only this much travels with the plan.
	SummaryLimit = 500
)

// Message is a unit of work handed to a named agent. ActiveStack carries
// the agent names of the live ancestor chain for cycle detection.
type Message struct {
	ID               types.ID `json:"id"`
	ParentID         types.ID `json:"parent_id,omitempty"`
	Depth            int      `json:"depth"`
	TargetAgent      string   `json:"target_agent"`
	TaskSummary      string   `json:"task_summary"`
	Context          string   `json:"context,omitempty"`
	Constraints      []string `json:"constraints,omitempty"`
	ExpectedOutput   string   `json:"expected_output,omitempty"`
	ResponseLanguage string   `json:"response_language,omitempty"`
	TenantID         types.ID `json:"tenant_id"`
	WorkspaceID      types.ID `json:"workspace_id"`
	ActiveStack      []string `json:"active_stack,omitempty"`
}

// NewChild derives a sub-delegation from its parent. Depth and stack are
// set here so validation has one construction path to trust.
func (m Message) NewChild(targetAgent, taskSummary string) Message {
	stack := make([]string, 0, len(m.ActiveStack)+1)
	stack = append(stack, m.ActiveStack...)
	stack = append(stack, m.TargetAgent)

	return Message{
		ID:               types.NewID(),
		ParentID:         m.ID,
		Depth:            m.Depth + 1,
		TargetAgent:      targetAgent,
		TaskSummary:      taskSummary,
		ResponseLanguage: m.ResponseLanguage,
		TenantID:         m.TenantID,
		WorkspaceID:      m.WorkspaceID,
		ActiveStack:      stack,
	}
}

// AgentOutput is one agent's result for a delegation.
type AgentOutput struct {
	DelegationID      types.ID        `json:"delegation_id"`
	Agent             string          `json:"agent"`
	Success           bool            `json:"success"`
	Result            string          `json:"result,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Artifacts         []string        `json:"artifacts,omitempty"`
	Confidence        float64         `json:"confidence"`
	NeedsVerification bool            `json:"needs_verification"`
	Error             string          `json:"error,omitempty"`
}

// Summary returns the capped result text threaded back into plan state.
func (o *AgentOutput) Summary() string {
	return Truncate(o.Result, SummaryLimit)
}

// Truncate cuts s to at most limit runes, marking the cut with an
// ellipsis.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

// Group is one parallel wave of an execution plan; members run
// concurrently, groups run in order.
type Group struct {
	Members []Message `json:"members"`
}

// ExecutionPlan is the ordered sequence of parallel groups forming the
// delegation DAG.
type ExecutionPlan struct {
	Groups []Group `json:"groups"`
}

// MemberCount returns the total number of delegations in the plan.
func (p *ExecutionPlan) MemberCount() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Members)
	}
	return n
}

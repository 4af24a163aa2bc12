package delegation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/types"
)

func rootMessage(agent string) Message {
	return Message{
		ID:          types.NewID(),
		Depth:       0,
		TargetAgent: agent,
		TaskSummary: "do work",
		TenantID:    types.NewID(),
		WorkspaceID: types.NewID(),
	}
}

func TestValidate_DepthBounds(t *testing.T) {
	msg := rootMessage("researcher")
	require.NoError(t, Validate(msg))

	// Walk the chain to the maximum depth.
	for i := 0; i < MaxDepth; i++ {
		msg = msg.NewChild("agent-"+strings.Repeat("x", i+1), "sub work")
		require.NoError(t, Validate(msg), "depth %d is within bounds", msg.Depth)
	}
	assert.Equal(t, MaxDepth, msg.Depth)

	tooDeep := msg.NewChild("one-more", "too deep")
	err := Validate(tooDeep)
	require.Error(t, err)
	assert.Equal(t, types.DELEGATION_DEPTH_EXCEEDED, types.CodeOf(err))
}

func TestValidate_CycleDetection(t *testing.T) {
	root := rootMessage("researcher")
	child := root.NewChild("writer", "write it up")
	require.NoError(t, Validate(child))

	// The grandchild targets an agent already in its active stack.
	cyclic := child.NewChild("researcher", "research more")
	err := Validate(cyclic)
	require.Error(t, err)
	assert.Equal(t, types.DELEGATION_CYCLE_DETECTED, types.CodeOf(err))

	// A sibling chain may reuse the name: the stack is per-branch.
	sibling := root.NewChild("writer", "other branch")
	assert.NoError(t, Validate(sibling))
}

func TestValidate_MissingAgent(t *testing.T) {
	msg := rootMessage("")
	err := Validate(msg)
	require.Error(t, err)
	assert.Equal(t, types.DELEGATION_AGENT_UNKNOWN, types.CodeOf(err))
}

func TestNewChild_Lineage(t *testing.T) {
	root := rootMessage("planner-agent")
	child := root.NewChild("researcher", "dig in")

	assert.Equal(t, root.ID, child.ParentID)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, []string{"planner-agent"}, child.ActiveStack)
	assert.Equal(t, root.TenantID, child.TenantID)
	assert.Equal(t, root.WorkspaceID, child.WorkspaceID)
}

func TestTruncate_SummaryCap(t *testing.T) {
	out := &AgentOutput{Result: strings.Repeat("r", 2000)}
	summary := out.Summary()
	assert.LessOrEqual(t, len([]rune(summary)), SummaryLimit)
	assert.True(t, strings.HasSuffix(summary, "…"))

	short := &AgentOutput{Result: "done"}
	assert.Equal(t, "done", short.Summary())
}

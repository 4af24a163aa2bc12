package delegation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/types"
)

// fakeAgent answers with a scripted result or error.
type fakeAgent struct {
	name   string
	result string
	err    error
	handle func(ctx context.Context, msg Message, sub Subdelegator) (*AgentOutput, error)
}

func (a *fakeAgent) Name() string { return a.name }

func (a *fakeAgent) Handle(ctx context.Context, msg Message, sub Subdelegator) (*AgentOutput, error) {
	if a.handle != nil {
		return a.handle(ctx, msg, sub)
	}
	if a.err != nil {
		return nil, a.err
	}
	return &AgentOutput{
		DelegationID: msg.ID,
		Agent:        a.name,
		Success:      true,
		Result:       a.result,
		Confidence:   0.9,
	}, nil
}

type memorySink struct {
	mu      sync.Mutex
	outputs []*AgentOutput
}

func (s *memorySink) Persist(ctx context.Context, msg Message, output *AgentOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, output)
	return nil
}

func newTestRegistry(agents ...Agent) *Registry {
	registry := NewRegistry(&fakeAgent{name: "generic", result: "generic answer"})
	for _, agent := range agents {
		registry.Register(agent)
	}
	return registry
}

func TestExecutor_PlanRunsGroupsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context, Message, Subdelegator) (*AgentOutput, error) {
		return func(ctx context.Context, msg Message, _ Subdelegator) (*AgentOutput, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return &AgentOutput{DelegationID: msg.ID, Success: true, Result: name + " done"}, nil
		}
	}

	registry := newTestRegistry(
		&fakeAgent{name: "a", handle: record("a")},
		&fakeAgent{name: "b", handle: record("b")},
		&fakeAgent{name: "c", handle: record("c")},
	)
	sink := &memorySink{}
	executor := NewExecutor(registry, WithSink(sink))

	plan := &ExecutionPlan{Groups: []Group{
		{Members: []Message{rootMessage("a"), rootMessage("b")}},
		{Members: []Message{rootMessage("c")}},
	}}

	outputs, err := executor.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	// Group 1 members both ran before group 2 started.
	require.Len(t, order, 3)
	assert.Equal(t, "c", order[2])

	// Full outputs hit the sink.
	assert.Len(t, sink.outputs, 3)
}

func TestExecutor_MemberFailureIsIsolated(t *testing.T) {
	registry := newTestRegistry(
		&fakeAgent{name: "ok", result: "fine"},
		&fakeAgent{name: "broken", err: fmt.Errorf("agent exploded")},
	)
	executor := NewExecutor(registry)

	plan := &ExecutionPlan{Groups: []Group{
		{Members: []Message{rootMessage("ok"), rootMessage("broken")}},
	}}

	outputs, err := executor.ExecutePlan(context.Background(), plan)
	require.NoError(t, err, "one member failing never aborts the group")
	require.Len(t, outputs, 2)

	byAgent := map[string]*AgentOutput{}
	for _, out := range outputs {
		byAgent[out.Agent] = out
	}
	assert.True(t, byAgent["ok"].Success)
	assert.False(t, byAgent["broken"].Success)
	assert.Contains(t, byAgent["broken"].Error, "agent exploded")
}

func TestExecutor_SummariesThreadIntoLaterGroups(t *testing.T) {
	var seenContext string
	registry := newTestRegistry(
		&fakeAgent{name: "first", result: strings.Repeat("long result ", 100)},
		&fakeAgent{name: "second", handle: func(ctx context.Context, msg Message, _ Subdelegator) (*AgentOutput, error) {
			seenContext = msg.Context
			return &AgentOutput{DelegationID: msg.ID, Success: true, Result: "ok"}, nil
		}},
	)
	executor := NewExecutor(registry)

	plan := &ExecutionPlan{Groups: []Group{
		{Members: []Message{rootMessage("first")}},
		{Members: []Message{rootMessage("second")}},
	}}

	_, err := executor.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)

	// Later members see only the capped summary, never the full result.
	assert.Contains(t, seenContext, "Earlier results:")
	assert.LessOrEqual(t, len([]rune(seenContext)), SummaryLimit+100)
}

func TestExecutor_InvalidPlanRejectedBeforeDispatch(t *testing.T) {
	dispatched := false
	registry := newTestRegistry(&fakeAgent{name: "a", handle: func(ctx context.Context, msg Message, _ Subdelegator) (*AgentOutput, error) {
		dispatched = true
		return &AgentOutput{Success: true}, nil
	}})
	executor := NewExecutor(registry)

	deep := rootMessage("a")
	deep.Depth = MaxDepth + 1
	plan := &ExecutionPlan{Groups: []Group{
		{Members: []Message{rootMessage("a"), deep}},
	}}

	_, err := executor.ExecutePlan(context.Background(), plan)
	require.Error(t, err)
	assert.Equal(t, types.DELEGATION_DEPTH_EXCEEDED, types.CodeOf(err))
	assert.False(t, dispatched, "nothing dispatches when validation fails")
}

func TestExecutor_RecursiveSubdelegation(t *testing.T) {
	registry := newTestRegistry(
		&fakeAgent{name: "researcher", result: "sources found"},
		&fakeAgent{name: "lead", handle: func(ctx context.Context, msg Message, sub Subdelegator) (*AgentOutput, error) {
			child, err := sub.Delegate(ctx, msg.NewChild("researcher", "find sources"))
			if err != nil {
				return nil, err
			}
			return &AgentOutput{
				DelegationID: msg.ID,
				Success:      true,
				Result:       "lead used: " + child.Summary(),
			}, nil
		}},
	)
	executor := NewExecutor(registry)

	plan := &ExecutionPlan{Groups: []Group{{Members: []Message{rootMessage("lead")}}}}
	outputs, err := executor.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Contains(t, outputs[0].Result, "sources found")
}

func TestExecutor_SubdelegationCycleRejected(t *testing.T) {
	var subErr error
	registry := newTestRegistry(
		&fakeAgent{name: "writer", result: "draft"},
		&fakeAgent{name: "lead", handle: func(ctx context.Context, msg Message, sub Subdelegator) (*AgentOutput, error) {
			// Delegating back to an ancestor agent name must be refused.
			_, subErr = sub.Delegate(ctx, msg.NewChild("lead", "delegate to myself"))
			return &AgentOutput{DelegationID: msg.ID, Success: subErr == nil}, nil
		}},
	)
	executor := NewExecutor(registry)

	plan := &ExecutionPlan{Groups: []Group{{Members: []Message{rootMessage("lead")}}}}
	outputs, err := executor.ExecutePlan(context.Background(), plan)
	require.NoError(t, err)
	require.Error(t, subErr)
	assert.Equal(t, types.DELEGATION_CYCLE_DETECTED, types.CodeOf(subErr))
	assert.False(t, outputs[0].Success)
}

func TestRegistry_FallbackResolution(t *testing.T) {
	registry := newTestRegistry(&fakeAgent{name: "specialist", result: "x"})

	assert.Equal(t, "specialist", registry.Resolve("specialist").Name())
	assert.Equal(t, "generic", registry.Resolve("nobody-home").Name())
}

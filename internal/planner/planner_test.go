package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/evidence"
	"github.com/zero-day-ai/conductor/internal/intake"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/llm/providers"
	"github.com/zero-day-ai/conductor/internal/types"
)

func newTestPlanner(responses ...providers.MockResponse) (*Planner, *providers.MockProvider) {
	p := providers.NewMockProvider(responses...)
	registry := llm.NewRegistry()
	registry.Register(p)
	return NewPlanner(llm.NewGateway(registry, "mock", ""), nil, nil), p
}

const refactorPlanJSON = `{"goals": [
	{"id": "goal-1", "title": "Migrate schema", "steps": [
		{"id": "s1", "type": "execute", "instructions": "migrate", "targets": ["db/schema.sql"]},
		{"id": "s2", "type": "tracker_op", "instructions": "comment progress"}
	]},
	{"id": "goal-2", "title": "Port code", "depends_on": ["goal-1"], "steps": [
		{"id": "s3", "type": "execute", "instructions": "port"}
	]}
]}`

func TestPlanner_AdviceIsRespondOnly(t *testing.T) {
	planner, p := newTestPlanner()

	plan, err := planner.Plan(context.Background(),
		&intake.Classification{Category: intake.CategoryAdvice}, nil, "summarize this thread")
	require.NoError(t, err)

	require.Len(t, plan.Goals, 1)
	require.Len(t, plan.Goals[0].Steps, 1)
	assert.Equal(t, StepTypeRespond, plan.Goals[0].Steps[0].Type)
	assert.False(t, plan.RequiresApproval)
	// No model call for advice plans.
	assert.Empty(t, p.Calls())
}

func TestPlanner_SingleTaskDecomposition(t *testing.T) {
	planner, p := newTestPlanner(providers.MockResponse{Content: "```json\n" + refactorPlanJSON + "\n```"})

	pack := &evidence.Pack{Hits: []evidence.Hit{{Source: "doc", Content: "schema notes", Score: 0.8}}}
	plan, err := planner.Plan(context.Background(),
		&intake.Classification{Category: intake.CategorySingleTask, RequiredAction: "migrate billing"},
		pack, "migrate the billing schema")
	require.NoError(t, err)

	require.Len(t, plan.Goals, 2)
	assert.Equal(t, []string{"goal-1"}, plan.Goals[1].DependsOn)
	assert.Equal(t, 3, plan.StepCount())
	assert.False(t, plan.RequiresApproval)
	assert.Equal(t, "2 goals / 3 steps", plan.Summary)

	// Evidence threads into the planning prompt.
	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[1].Content, "schema notes")
}

func TestPlanner_EpicRequiresApproval(t *testing.T) {
	planner, _ := newTestPlanner(providers.MockResponse{Content: refactorPlanJSON})

	plan, err := planner.Plan(context.Background(),
		&intake.Classification{Category: intake.CategoryEpic}, nil, "replatform everything")
	require.NoError(t, err)
	assert.True(t, plan.RequiresApproval)
}

func TestPlanner_GenerativeRequiresApproval(t *testing.T) {
	planner, _ := newTestPlanner(providers.MockResponse{Content: refactorPlanJSON})

	plan, err := planner.Plan(context.Background(),
		&intake.Classification{Category: intake.CategoryGenerative}, nil, "write a service")
	require.NoError(t, err)
	assert.True(t, plan.RequiresApproval)
}

func TestPlanner_UnparseablePlan(t *testing.T) {
	planner, _ := newTestPlanner(providers.MockResponse{Content: "I would first migrate, then port."})

	_, err := planner.Plan(context.Background(),
		&intake.Classification{Category: intake.CategorySingleTask}, nil, "migrate")
	require.Error(t, err)
	assert.Equal(t, types.PLAN_GENERATION_FAILED, types.CodeOf(err))
}

func TestPlanner_RejectsUnknownStepType(t *testing.T) {
	planner, _ := newTestPlanner(providers.MockResponse{
		Content: `{"goals":[{"id":"g1","title":"x","steps":[{"id":"s1","type":"teleport","instructions":"x"}]}]}`,
	})

	_, err := planner.Plan(context.Background(),
		&intake.Classification{Category: intake.CategorySingleTask}, nil, "migrate")
	require.Error(t, err)
	assert.Equal(t, types.PLAN_GENERATION_FAILED, types.CodeOf(err))
}

func TestPlanner_DropsUnknownDependencies(t *testing.T) {
	planner, _ := newTestPlanner(providers.MockResponse{
		Content: `{"goals":[{"id":"g1","title":"x","depends_on":["ghost","g1"],"steps":[{"type":"respond","instructions":"x"}]}]}`,
	})

	plan, err := planner.Plan(context.Background(),
		&intake.Classification{Category: intake.CategorySingleTask}, nil, "q")
	require.NoError(t, err)
	assert.Empty(t, plan.Goals[0].DependsOn)
	// Missing step ids are filled in.
	assert.Equal(t, "g1/step-1", plan.Goals[0].Steps[0].ID)
}

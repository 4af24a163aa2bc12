package engine

import (
	"strings"

	"github.com/zero-day-ai/conductor/internal/delegation"
	"github.com/zero-day-ai/conductor/internal/planner"
	"github.com/zero-day-ai/conductor/internal/types"
)

// BuildExecutionPlan converts the planner's goal DAG into delegation
// waves: each wave holds the goals whose dependencies are satisfied by
// earlier waves, so members of one wave can run in parallel. Goals whose
// dependencies can never be satisfied go into a final best-effort wave;
// progress always beats deadlock.
func BuildExecutionPlan(state *WorkflowState) (*delegation.ExecutionPlan, error) {
	if state.Plan == nil || len(state.Plan.Goals) == 0 {
		return nil, types.NewError(types.PLAN_GENERATION_FAILED, "no plan to delegate")
	}

	placed := make(map[string]bool, len(state.Plan.Goals))
	remaining := make([]planner.Goal, len(state.Plan.Goals))
	copy(remaining, state.Plan.Goals)

	var groups []delegation.Group
	for len(remaining) > 0 {
		var wave []planner.Goal
		var rest []planner.Goal
		for _, goal := range remaining {
			if depsPlaced(goal, placed) {
				wave = append(wave, goal)
			} else {
				rest = append(rest, goal)
			}
		}
		if len(wave) == 0 {
			// Unsatisfiable dependencies; run the remainder together.
			wave, rest = rest, nil
		}

		members := make([]delegation.Message, 0, len(wave))
		for _, goal := range wave {
			placed[goal.ID] = true
			members = append(members, goalMessage(state, goal))
		}
		groups = append(groups, delegation.Group{Members: members})
		remaining = rest
	}

	return &delegation.ExecutionPlan{Groups: groups}, nil
}

func depsPlaced(goal planner.Goal, placed map[string]bool) bool {
	for _, dep := range goal.DependsOn {
		if !placed[dep] {
			return false
		}
	}
	return true
}

// goalMessage builds the root delegation for one goal. Depth starts at 0;
// agents may sub-delegate from there up to the chain bound.
func goalMessage(state *WorkflowState, goal planner.Goal) delegation.Message {
	return delegation.Message{
		ID:             types.NewID(),
		Depth:          0,
		TargetAgent:    agentForGoal(goal),
		TaskSummary:    goal.Title,
		Context:        goalContext(state, goal),
		ExpectedOutput: "a concise result the synthesizer can fold into the final answer",
		TenantID:       state.Request.TenantID,
		WorkspaceID:    state.Request.WorkspaceID,
	}
}

// agentForGoal names the agent class for a goal by its dominant step
// type. Unknown names resolve to the registry fallback, so these are
// routing hints rather than hard bindings.
func agentForGoal(goal planner.Goal) string {
	for _, step := range goal.Steps {
		switch step.Type {
		case planner.StepTypeExecute:
			return "implementer"
		case planner.StepTypeTrackerOp:
			return "coordinator"
		}
	}
	return "analyst"
}

// goalContext assembles the goal's instructions plus top evidence hits.
func goalContext(state *WorkflowState, goal planner.Goal) string {
	var sb strings.Builder
	for _, step := range goal.Steps {
		sb.WriteString(step.Instructions)
		sb.WriteString("\n")
	}
	if state.Evidence != nil {
		for _, hit := range state.Evidence.Hits {
			sb.WriteString("\n[")
			sb.WriteString(hit.Source)
			sb.WriteString("] ")
			sb.WriteString(hit.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goalsFixture() []Goal {
	step := []Step{{ID: "s", Type: StepTypeRespond, Instructions: "x"}}
	return []Goal{
		{ID: "a", Steps: step, DependsOn: []string{"b"}},
		{ID: "b", Steps: step},
		{ID: "c", Steps: step, DependsOn: []string{"a", "b"}},
	}
}

func TestNextGoal_ReordersToSatisfiedGoal(t *testing.T) {
	goals := goalsFixture()

	// "a" is first in plan order but depends on "b"; the selector reorders.
	sel := NextGoal(goals, map[string]bool{})
	require.NotNil(t, sel)
	assert.Equal(t, "b", sel.Goal.ID)
	assert.False(t, sel.BestEffort)

	sel = NextGoal(goals, map[string]bool{"b": true})
	require.NotNil(t, sel)
	assert.Equal(t, "a", sel.Goal.ID)

	sel = NextGoal(goals, map[string]bool{"a": true, "b": true})
	require.NotNil(t, sel)
	assert.Equal(t, "c", sel.Goal.ID)
}

func TestNextGoal_AllComplete(t *testing.T) {
	sel := NextGoal(goalsFixture(), map[string]bool{"a": true, "b": true, "c": true})
	assert.Nil(t, sel)
}

func TestNextGoal_NeverDeadlocks(t *testing.T) {
	step := []Step{{ID: "s", Type: StepTypeRespond, Instructions: "x"}}
	// Mutually dependent goals: nothing is ever satisfied.
	goals := []Goal{
		{ID: "x", Steps: step, DependsOn: []string{"y"}},
		{ID: "y", Steps: step, DependsOn: []string{"x"}},
	}

	sel := NextGoal(goals, map[string]bool{})
	require.NotNil(t, sel, "selector must make progress on cyclic dependencies")
	assert.Equal(t, "x", sel.Goal.ID)
	assert.True(t, sel.BestEffort)
	assert.Equal(t, []string{"y"}, sel.UnmetDeps)
}

package planner

// Selection is the outcome of picking the next goal to run.
type Selection struct {
	Goal *Goal

	// BestEffort is set when no incomplete goal has all dependencies
	// satisfied and the selector proceeds anyway. Progress always beats
	// deadlock.
	BestEffort bool

	// UnmetDeps lists the dependencies ignored by a best-effort pick.
	UnmetDeps []string
}

// NextGoal selects the next goal given the set of completed goal ids.
// Preference order: first goal in plan order whose dependencies are all
// completed, then any dependency-free goal, then best-effort the first
// incomplete goal. Returns nil when every goal is complete.
func NextGoal(goals []Goal, completed map[string]bool) *Selection {
	satisfied := func(g *Goal) (bool, []string) {
		var unmet []string
		for _, dep := range g.DependsOn {
			if !completed[dep] {
				unmet = append(unmet, dep)
			}
		}
		return len(unmet) == 0, unmet
	}

	var firstIncomplete *Goal
	var firstUnmet []string
	for i := range goals {
		goal := &goals[i]
		if completed[goal.ID] {
			continue
		}
		ok, unmet := satisfied(goal)
		if ok {
			return &Selection{Goal: goal}
		}
		if firstIncomplete == nil {
			firstIncomplete = goal
			firstUnmet = unmet
		}
	}

	if firstIncomplete == nil {
		return nil
	}
	return &Selection{Goal: firstIncomplete, BestEffort: true, UnmetDeps: firstUnmet}
}

package planner

import "fmt"

// StepType drives dispatch of a planned step.
type StepType string

const (
	// StepTypeRespond emits a model-generated answer; no side effects.
	StepTypeRespond StepType = "respond"

	// StepTypeExecute delegates to an out-of-process execution unit.
	StepTypeExecute StepType = "execute"

	// StepTypeTrackerOp performs a synchronous tracker API call.
	StepTypeTrackerOp StepType = "tracker_op"
)

// IsValid checks if the step type is a known value.
func (t StepType) IsValid() bool {
	switch t {
	case StepTypeRespond, StepTypeExecute, StepTypeTrackerOp:
		return true
	default:
		return false
	}
}

// Step is one unit of dispatchable work within a goal.
type Step struct {
	ID            string   `json:"id"`
	Type          StepType `json:"type"`
	Instructions  string   `json:"instructions"`
	Targets       []string `json:"targets,omitempty"`
	ExecUnitClass string   `json:"exec_unit_class,omitempty"`
}

// Goal is an ordered group of steps with declared dependencies on other
// goals.
type Goal struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Steps     []Step   `json:"steps"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// Plan is the planner's output for one workflow run.
type Plan struct {
	Goals []Goal `json:"goals"`

	// RequiresApproval gates epic and generative plans behind a caller
	// approval showing the proposed plan before any execution.
	RequiresApproval bool `json:"requires_approval"`

	Summary string `json:"summary,omitempty"`
}

// StepCount returns the total number of steps across all goals.
func (p *Plan) StepCount() int {
	n := 0
	for _, g := range p.Goals {
		n += len(g.Steps)
	}
	return n
}

// Shape returns the compact plan description stored in procedural memory.
func (p *Plan) Shape() string {
	return fmt.Sprintf("%d goals / %d steps", len(p.Goals), p.StepCount())
}

package execunit

import (
	"context"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Instruction is a prepared unit of work submitted to an out-of-process
// execution unit. The unit performs the actual code and file changes; the
// engine only orchestrates.
type Instruction struct {
	ThreadID     types.ID `json:"thread_id"`
	StepID       string   `json:"step_id"`
	Instructions string   `json:"instructions"`
	Targets      []string `json:"targets,omitempty"`
	UnitClass    string   `json:"unit_class,omitempty"`
	WorkspaceRef string   `json:"workspace_ref"`
}

// StatusEvent is one progress update streamed from a running unit.
type StatusEvent struct {
	Phase   string    `json:"phase"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Result is the structured outcome read back when a unit finishes.
type Result struct {
	Success          bool     `json:"success"`
	Summary          string   `json:"summary"`
	ChangedArtifacts []string `json:"changed_artifacts,omitempty"`
	Details          string   `json:"details,omitempty"`
}

// Handle follows one submitted instruction to completion.
type Handle interface {
	// Status streams progress events until the unit finishes. The channel
	// closes when no further events will arrive.
	Status() <-chan StatusEvent

	// Result blocks until the unit finishes and returns its outcome.
	Result(ctx context.Context) (*Result, error)
}

// Launcher submits instructions to execution units.
type Launcher interface {
	Submit(ctx context.Context, instruction Instruction) (Handle, error)
}

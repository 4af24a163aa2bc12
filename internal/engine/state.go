package engine

import (
	"time"

	"github.com/zero-day-ai/conductor/internal/delegation"
	"github.com/zero-day-ai/conductor/internal/evidence"
	"github.com/zero-day-ai/conductor/internal/intake"
	"github.com/zero-day-ai/conductor/internal/planner"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Mode selects how a plan executes.
type Mode string

const (
	// ModeSteps runs the plan goal by goal through the step dispatcher.
	ModeSteps Mode = "steps"

	// ModeDelegation converts the plan into a delegation DAG executed by
	// named agents, synthesized into one answer at the end.
	ModeDelegation Mode = "delegation"
)

// WorkflowRequest is the caller's submission. Immutable once accepted.
type WorkflowRequest struct {
	Text         string   `json:"text"`
	TenantID     types.ID `json:"tenant_id"`
	WorkspaceID  types.ID `json:"workspace_id"`
	WorkspaceRef string   `json:"workspace_ref,omitempty"`
	Conversation string   `json:"conversation,omitempty"`
	Mode         Mode     `json:"mode,omitempty"`

	// Policy overrides for this request; zero values fall back to the
	// engine's configured policy.
	AutoPush bool `json:"auto_push,omitempty"`
}

// StepResult records one dispatched step's outcome. It is persisted in
// the checkpoint before the workflow advances past the step.
type StepResult struct {
	StepID      string   `json:"step_id"`
	Success     bool     `json:"success"`
	Summary     string   `json:"summary"`
	SideEffects []string `json:"side_effects,omitempty"`
}

// WorkflowState is the full mutable execution record of one workflow. It
// is the sole resumable source of truth: every node handler mutates it
// and the engine checkpoints it before the next node begins. No ambient
// state exists outside this struct.
type WorkflowState struct {
	ThreadID types.ID             `json:"thread_id"`
	Request  WorkflowRequest      `json:"request"`
	Version  int64                `json:"version"`
	Status   types.WorkflowStatus `json:"status"`

	// Node is the cursor naming the next handler to run.
	Node string `json:"node"`

	Classification *intake.Classification `json:"classification,omitempty"`
	Evidence       *evidence.Pack         `json:"evidence,omitempty"`
	Plan           *planner.Plan          `json:"plan,omitempty"`

	// Step-mode progress.
	CompletedGoals map[string]bool        `json:"completed_goals,omitempty"`
	StepResults    map[string]*StepResult `json:"step_results,omitempty"`
	CurrentGoalID  string                 `json:"current_goal_id,omitempty"`
	CurrentStepIdx int                    `json:"current_step_idx"`

	// Delegation-mode progress.
	DelegationOutputs []*delegation.AgentOutput `json:"delegation_outputs,omitempty"`

	// Pending is the typed resumption payload while Status is interrupted.
	Pending *PendingApproval `json:"pending,omitempty"`

	// Decisions records the caller's answer per approval action so node
	// handlers can act on a grant or refusal after resume.
	Decisions map[string]ApprovalDecision `json:"decisions,omitempty"`

	// UseEscalation routes subsequent model calls to the escalation
	// provider. Set by auto-escalate policy or an approved escalation.
	UseEscalation bool `json:"use_escalation,omitempty"`

	Committed   bool     `json:"committed"`
	Pushed      bool     `json:"pushed"`
	PushSkipped bool     `json:"push_skipped"`
	Warnings    []string `json:"warnings,omitempty"`

	FinalSummary string `json:"final_summary,omitempty"`
	FinalError   string `json:"final_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkflowState creates the initial state for an accepted request.
func NewWorkflowState(threadID types.ID, req WorkflowRequest) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		ThreadID:       threadID,
		Request:        req,
		Version:        0,
		Status:         types.WorkflowStatusRunning,
		Node:           nodeClassify,
		CompletedGoals: make(map[string]bool),
		StepResults:    make(map[string]*StepResult),
		Decisions:      make(map[string]ApprovalDecision),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Warn appends a non-blocking warning to the state.
func (s *WorkflowState) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// SideEffectArtifacts returns every artifact changed by successful
// execute steps, in dispatch order.
func (s *WorkflowState) SideEffectArtifacts() []string {
	var artifacts []string
	if s.Plan == nil {
		return artifacts
	}
	for _, goal := range s.Plan.Goals {
		for _, step := range goal.Steps {
			if result, ok := s.StepResults[step.ID]; ok && result.Success {
				artifacts = append(artifacts, result.SideEffects...)
			}
		}
	}
	return artifacts
}

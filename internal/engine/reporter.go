package engine

import (
	"context"

	"github.com/zero-day-ai/conductor/internal/types"
)

// StatusReport is the caller-visible view of a workflow, shared by the
// poll API and push callbacks.
type StatusReport struct {
	ThreadID  types.ID             `json:"thread_id"`
	Status    types.WorkflowStatus `json:"status"`
	Node      string               `json:"node,omitempty"`
	Summary   string               `json:"summary,omitempty"`
	Error     string               `json:"error,omitempty"`
	Interrupt *PendingApproval     `json:"interrupt,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// Reporter receives engine-to-caller push events. Implementations must
// not block the engine; failures are the reporter's problem.
type Reporter interface {
	// ReportProgress fires after every node transition.
	ReportProgress(ctx context.Context, report StatusReport)

	// ReportTerminal fires once per workflow on done, error, cancelled,
	// and on every interrupt.
	ReportTerminal(ctx context.Context, report StatusReport)
}

// NopReporter drops all events. Used when no callback URL is configured.
type NopReporter struct{}

func (NopReporter) ReportProgress(context.Context, StatusReport) {}
func (NopReporter) ReportTerminal(context.Context, StatusReport) {}

// reportFor builds the caller-visible view of a state.
func reportFor(state *WorkflowState) StatusReport {
	return StatusReport{
		ThreadID:  state.ThreadID,
		Status:    state.Status,
		Node:      state.Node,
		Summary:   state.FinalSummary,
		Error:     state.FinalError,
		Interrupt: state.Pending,
		Warnings:  state.Warnings,
	}
}

package types

import (
	"encoding/json"
	"fmt"
)

// WorkflowStatus represents the caller-visible lifecycle status of a workflow.
// A workflow moves pending -> running -> {interrupted <-> running} -> done|error|cancelled.
// Interrupted is a first-class durable status: the workflow is suspended at an
// approval boundary and resumes only on an explicit decision.
type WorkflowStatus string

const (
	WorkflowStatusPending     WorkflowStatus = "pending"
	WorkflowStatusRunning     WorkflowStatus = "running"
	WorkflowStatusInterrupted WorkflowStatus = "interrupted"
	WorkflowStatusDone        WorkflowStatus = "done"
	WorkflowStatusError       WorkflowStatus = "error"
	WorkflowStatusCancelled   WorkflowStatus = "cancelled"
)

// String returns the string representation of the status.
func (s WorkflowStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusRunning, WorkflowStatusInterrupted,
		WorkflowStatusDone, WorkflowStatusError, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is terminal. Checkpoints for
// terminal workflows are eligible for TTL pruning.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusDone, WorkflowStatusError, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s WorkflowStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *WorkflowStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status := WorkflowStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid workflow status: %s", str)
	}

	*s = status
	return nil
}

// HealthState represents the health of a component or provider.
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// HealthStatus carries a health state with an optional human-readable detail.
type HealthStatus struct {
	State  HealthState `json:"state"`
	Detail string      `json:"detail,omitempty"`
}

// NewHealthStatus creates a HealthStatus with the given state and detail.
func NewHealthStatus(state HealthState, detail string) HealthStatus {
	return HealthStatus{State: state, Detail: detail}
}

// IsHealthy reports whether the status is healthy.
func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}

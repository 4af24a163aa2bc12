package engine

import "fmt"

// ApprovalAction names what the caller is being asked to approve.
type ApprovalAction string

const (
	ApprovalActionPlan          ApprovalAction = "plan"
	ApprovalActionCommit        ApprovalAction = "commit"
	ApprovalActionPush          ApprovalAction = "push"
	ApprovalActionEscalation    ApprovalAction = "model_escalation"
	ApprovalActionClarification ApprovalAction = "clarification"
)

// RiskClass grades an approval request for the caller's UI.
type RiskClass string

const (
	RiskLow    RiskClass = "low"
	RiskMedium RiskClass = "medium"
	RiskHigh   RiskClass = "high"
)

// PendingApproval is the serializable resumption payload carried by an
// interrupted workflow. It fully describes what was asked so resume works
// across process restarts; no in-memory continuation exists.
type PendingApproval struct {
	Action      ApprovalAction    `json:"action"`
	Description string            `json:"description"`
	Risk        RiskClass         `json:"risk"`
	Details     map[string]string `json:"details,omitempty"`

	// Questions is set for clarification interrupts.
	Questions []string `json:"questions,omitempty"`

	// ResumeNode is the node the workflow continues from after approval.
	ResumeNode string `json:"resume_node"`
}

// ApprovalDecision is the caller's answer to a pending approval.
type ApprovalDecision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

func (d ApprovalDecision) String() string {
	if d.Approved {
		return "approved"
	}
	if d.Reason != "" {
		return fmt.Sprintf("rejected: %s", d.Reason)
	}
	return "rejected"
}

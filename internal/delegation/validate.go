package delegation

import (
	"fmt"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Validate checks the depth and cycle invariants of a message before
// dispatch. Violations are hard errors; nothing is sent.
func Validate(msg Message) error {
	if msg.TargetAgent == "" {
		return types.NewError(types.DELEGATION_AGENT_UNKNOWN, "delegation has no target agent")
	}
	if msg.Depth < 0 || msg.Depth > MaxDepth {
		return types.NewError(types.DELEGATION_DEPTH_EXCEEDED,
			fmt.Sprintf("delegation depth %d exceeds maximum %d", msg.Depth, MaxDepth))
	}
	for _, ancestor := range msg.ActiveStack {
		if ancestor == msg.TargetAgent {
			return types.NewError(types.DELEGATION_CYCLE_DETECTED,
				fmt.Sprintf("agent %q already appears in the active delegation stack", msg.TargetAgent))
		}
	}
	return nil
}

// ValidatePlan checks every member of every group before any dispatch.
func ValidatePlan(plan *ExecutionPlan) error {
	for _, group := range plan.Groups {
		for _, member := range group.Members {
			if err := Validate(member); err != nil {
				return err
			}
		}
	}
	return nil
}

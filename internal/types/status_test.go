package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStatus_IsTerminal(t *testing.T) {
	terminal := []WorkflowStatus{WorkflowStatusDone, WorkflowStatusError, WorkflowStatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "expected %s to be terminal", s)
	}

	nonTerminal := []WorkflowStatus{WorkflowStatusPending, WorkflowStatusRunning, WorkflowStatusInterrupted}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "expected %s to be non-terminal", s)
	}
}

func TestWorkflowStatus_UnmarshalJSON(t *testing.T) {
	var s WorkflowStatus
	require.NoError(t, json.Unmarshal([]byte(`"interrupted"`), &s))
	assert.Equal(t, WorkflowStatusInterrupted, s)

	assert.Error(t, json.Unmarshal([]byte(`"sleeping"`), &s))
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus(HealthStateHealthy, "")
	assert.True(t, h.IsHealthy())

	h = NewHealthStatus(HealthStateDegraded, "one provider down")
	assert.False(t, h.IsHealthy())
	assert.Equal(t, "one provider down", h.Detail)
}

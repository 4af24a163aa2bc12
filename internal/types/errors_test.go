package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConductorError_Error(t *testing.T) {
	err := NewError(STEP_FAILED, "step exec-1 failed")
	assert.Equal(t, "[STEP_FAILED] step exec-1 failed", err.Error())

	wrapped := WrapError(DB_QUERY_FAILED, "checkpoint lookup", errors.New("disk I/O error"))
	assert.Equal(t, "[DB_QUERY_FAILED] checkpoint lookup: disk I/O error", wrapped.Error())
}

func TestConductorError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(MODEL_UNAVAILABLE, "provider anthropic", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestConductorError_Is(t *testing.T) {
	err := NewError(LOCK_CONTENTION, "engine busy")

	assert.ErrorIs(t, err, NewError(LOCK_CONTENTION, "different message"))
	assert.NotErrorIs(t, err, NewError(LIVENESS_TIMEOUT, "engine busy"))
}

func TestCodeOf(t *testing.T) {
	err := NewError(POLICY_VIOLATION, "forbidden path touched")
	wrapped := fmt.Errorf("evaluating step: %w", err)

	assert.Equal(t, POLICY_VIOLATION, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(LIVENESS_TIMEOUT, "no tokens")))
	assert.False(t, IsRetryable(NewError(POLICY_VIOLATION, "ceiling exceeded")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

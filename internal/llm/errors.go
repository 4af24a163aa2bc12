package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zero-day-ai/conductor/internal/types"
)

// NewAuthError reports a missing or rejected provider credential.
func NewAuthError(provider string, cause error) *types.ConductorError {
	err := types.NewError(types.MODEL_UNAVAILABLE,
		fmt.Sprintf("provider %s: missing or invalid credentials", provider))
	err.Cause = cause
	return err
}

// NewProviderError wraps a provider failure as retryable so the caller may
// re-attempt or escalate to another provider.
func NewProviderError(provider string, cause error) *types.ConductorError {
	err := types.WrapError(types.MODEL_UNAVAILABLE,
		fmt.Sprintf("provider %s request failed", provider), cause)
	err.Retryable = true
	return err
}

// NewEmptyResponseError reports a completion that carried neither text nor
// a tool call.
func NewEmptyResponseError(provider string) *types.ConductorError {
	return types.NewRetryableError(types.MODEL_RESPONSE_EMPTY,
		fmt.Sprintf("provider %s returned a response with no text and no tool calls", provider))
}

// NewLivenessError reports a streaming call that produced no token within
// the heartbeat window.
func NewLivenessError(provider string, attempt int) *types.ConductorError {
	return types.NewRetryableError(types.LIVENESS_TIMEOUT,
		fmt.Sprintf("provider %s stream stalled past the heartbeat window (attempt %d)", provider, attempt))
}

// TranslateError maps raw provider and transport errors onto conductor
// error codes. Cancellation passes through untouched so callers can tell
// a deliberate cancel from a provider fault.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var condErr *types.ConductorError
	if errors.As(err, &condErr) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return NewAuthError(provider, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded"):
		return NewProviderError(provider, err)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout"):
		return NewProviderError(provider, err)
	default:
		return NewProviderError(provider, err)
	}
}

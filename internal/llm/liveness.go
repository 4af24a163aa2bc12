package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zero-day-ai/conductor/internal/types"
)

// LivenessConfig tunes the token watchdog for streaming completions.
// A call is dead when no stream chunk arrives for HeartbeatWindow; total
// call duration is never bounded, so long healthy generations run freely.
type LivenessConfig struct {
	HeartbeatWindow time.Duration
	MonitorTick     time.Duration
	Retries         int
}

// DefaultLivenessConfig returns the watchdog defaults.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		HeartbeatWindow: 45 * time.Second,
		MonitorTick:     time.Second,
		Retries:         2,
	}
}

func (c LivenessConfig) withDefaults() LivenessConfig {
	d := DefaultLivenessConfig()
	if c.HeartbeatWindow <= 0 {
		c.HeartbeatWindow = d.HeartbeatWindow
	}
	if c.MonitorTick <= 0 {
		c.MonitorTick = d.MonitorTick
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	return c
}

// CompleteLive runs a streaming completion under the token watchdog,
// retrying stalled attempts up to cfg.Retries times. Non-liveness errors
// and caller cancellation are returned immediately.
func CompleteLive(ctx context.Context, p Provider, req CompletionRequest, cfg LivenessConfig, logger *slog.Logger) (*CompletionResponse, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Retries+1; attempt++ {
		resp, err := streamOnce(ctx, p, req, cfg, attempt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if types.CodeOf(err) != types.LIVENESS_TIMEOUT {
			return nil, err
		}

		lastErr = err
		logger.Warn("model stream stalled, retrying",
			"provider", p.Name(),
			"attempt", attempt,
			"heartbeat_window", cfg.HeartbeatWindow)
	}
	return nil, lastErr
}

// streamOnce runs a single streaming attempt. The watchdog goroutine
// samples the last-token timestamp every MonitorTick and cancels the
// stream when the gap exceeds HeartbeatWindow.
func streamOnce(ctx context.Context, p Provider, req CompletionRequest, cfg LivenessConfig, attempt int) (*CompletionResponse, error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := p.Stream(sctx, req)
	if err != nil {
		return nil, TranslateError(p.Name(), err)
	}

	var lastToken atomic.Int64
	lastToken.Store(time.Now().UnixNano())

	var stalled atomic.Bool
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		ticker := time.NewTicker(cfg.MonitorTick)
		defer ticker.Stop()
		for {
			select {
			case <-sctx.Done():
				return
			case <-ticker.C:
				gap := time.Since(time.Unix(0, lastToken.Load()))
				if gap > cfg.HeartbeatWindow {
					stalled.Store(true)
					cancel()
					return
				}
			}
		}
	}()

	var content strings.Builder
	var toolCalls []ToolCall
	var usage TokenUsage
	var streamErr error
	for chunk := range ch {
		// Every chunk is a liveness signal, payload or not.
		lastToken.Store(time.Now().UnixNano())

		if chunk.Error != nil {
			streamErr = chunk.Error
			continue
		}
		content.WriteString(chunk.Delta.Content)
		if chunk.Delta.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.Delta.ToolCall)
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}
	cancel()
	<-watchdogDone

	if stalled.Load() {
		return nil, NewLivenessError(p.Name(), attempt)
	}
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return nil, TranslateError(p.Name(), streamErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &CompletionResponse{
		ID:    uuid.New().String(),
		Model: req.Model,
		Message: Message{
			Role:      RoleAssistant,
			Content:   content.String(),
			ToolCalls: toolCalls,
		},
		FinishReason: FinishReasonStop,
		Usage:        usage,
	}
	if len(toolCalls) > 0 {
		resp.FinishReason = FinishReasonToolCalls
	}
	if !resp.HasPayload() {
		return nil, NewEmptyResponseError(p.Name())
	}
	return resp, nil
}

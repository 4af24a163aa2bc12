package execunit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Pool bounds concurrent execution-unit submissions to a fixed number of
// slots. Submission waits for a slot up to the submit timeout; a slot is
// held until the unit's result has been read.
type Pool struct {
	launcher      Launcher
	slots         chan struct{}
	submitTimeout time.Duration
	logger        *slog.Logger
}

// NewPool wraps a launcher with slot-bounded submission.
func NewPool(launcher Launcher, slots int, submitTimeout time.Duration, logger *slog.Logger) *Pool {
	if slots <= 0 {
		slots = 2
	}
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		launcher:      launcher,
		slots:         make(chan struct{}, slots),
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

// Submit acquires a slot and forwards to the underlying launcher. When no
// slot frees up within the submit timeout the step fails as unit
// unavailability, retryable on a later run.
func (p *Pool) Submit(ctx context.Context, instruction Instruction) (Handle, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	defer cancel()

	select {
	case p.slots <- struct{}{}:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewRetryableError(types.EXEC_UNIT_UNAVAILABLE,
			"no execution slot freed within the submit timeout")
	}

	handle, err := p.launcher.Submit(ctx, instruction)
	if err != nil {
		<-p.slots
		return nil, types.WrapError(types.EXEC_UNIT_FAILED, "execution unit submission failed", err)
	}

	p.logger.Debug("execution unit submitted",
		"thread_id", instruction.ThreadID, "step_id", instruction.StepID)
	return &slotHandle{Handle: handle, release: p.releaseOnce()}, nil
}

func (p *Pool) releaseOnce() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-p.slots })
	}
}

// InUse returns the number of occupied slots.
func (p *Pool) InUse() int {
	return len(p.slots)
}

// slotHandle releases its pool slot when the result is read.
type slotHandle struct {
	Handle
	release func()
}

func (h *slotHandle) Result(ctx context.Context) (*Result, error) {
	defer h.release()
	return h.Handle.Result(ctx)
}

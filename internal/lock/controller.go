package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Controller enforces single-flight execution: IDLE or ACQUIRED, nothing
// else. A start request while ACQUIRED is rejected outright, never queued.
// Three layers guard acquisition: the caller's pre-check via Busy, the
// in-process mutex here, and the distributed lock record.
type Controller struct {
	locker            Locker
	holderID          string
	heartbeatInterval time.Duration
	logger            *slog.Logger
	onLost            func(threadID types.ID)

	mu           sync.Mutex
	activeThread types.ID
	acquired     bool
	stopRefresh  context.CancelFunc
	refreshDone  chan struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLostHandler registers a callback invoked when a heartbeat discovers
// the lock was reclaimed by another replica.
func WithLostHandler(fn func(threadID types.ID)) ControllerOption {
	return func(c *Controller) { c.onLost = fn }
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a single-flight controller. holderID identifies
// this replica in the distributed record.
func NewController(locker Locker, holderID string, heartbeatInterval time.Duration, opts ...ControllerOption) *Controller {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 5 * time.Second
	}
	c := &Controller{
		locker:            locker,
		holderID:          holderID,
		heartbeatInterval: heartbeatInterval,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether a workflow currently holds the slot. Callers use
// this as the cheap pre-check before submitting.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

// ActiveThread returns the thread holding the slot, if any.
func (c *Controller) ActiveThread() (types.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeThread, c.acquired
}

// Acquire takes the engine slot for threadID. Contention, local or
// distributed, returns LOCK_CONTENTION; the caller retries later.
func (c *Controller) Acquire(ctx context.Context, threadID types.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acquired {
		return types.NewRetryableError(types.LOCK_CONTENTION,
			"engine busy with thread "+c.activeThread.String())
	}

	ok, err := c.locker.TryAcquire(ctx, c.holderID, threadID)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewRetryableError(types.LOCK_CONTENTION,
			"engine lock held by another replica")
	}

	c.acquired = true
	c.activeThread = threadID

	refreshCtx, cancel := context.WithCancel(context.Background())
	c.stopRefresh = cancel
	c.refreshDone = make(chan struct{})
	go c.refreshLoop(refreshCtx, threadID, c.refreshDone)

	c.logger.Info("engine slot acquired",
		"thread_id", threadID, "holder_id", c.holderID)
	return nil
}

// refreshLoop heartbeats the distributed record until released or lost.
func (c *Controller) refreshLoop(ctx context.Context, threadID types.ID, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := c.locker.Heartbeat(ctx, c.holderID)
			if err != nil {
				c.logger.Warn("lock heartbeat failed", "error", err)
				continue
			}
			if !ok {
				c.logger.Error("engine lock lost to another replica",
					"thread_id", threadID, "holder_id", c.holderID)
				c.markLost()
				if c.onLost != nil {
					c.onLost(threadID)
				}
				return
			}
		}
	}
}

func (c *Controller) markLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquired = false
	c.activeThread = types.ID("")
	if c.stopRefresh != nil {
		c.stopRefresh()
		c.stopRefresh = nil
	}
}

// Release gives the slot back. Safe to call when not held.
func (c *Controller) Release(ctx context.Context) error {
	c.mu.Lock()
	if !c.acquired {
		c.mu.Unlock()
		return nil
	}
	c.acquired = false
	c.activeThread = types.ID("")
	stop := c.stopRefresh
	done := c.refreshDone
	c.stopRefresh = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	return c.locker.Release(ctx, c.holderID)
}

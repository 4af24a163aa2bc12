package lock

import (
	"context"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Status describes the current distributed lock holder.
type Status struct {
	Held     bool     `json:"held"`
	HolderID string   `json:"holder_id,omitempty"`
	ThreadID types.ID `json:"thread_id,omitempty"`
}

// Locker is the distributed single-flight lock backend. Implementations
// must acquire atomically; a stale holder's lock is reclaimable by any
// replica.
type Locker interface {
	// TryAcquire attempts to take the lock for threadID. Returns false
	// without error when another live holder has it.
	TryAcquire(ctx context.Context, holderID string, threadID types.ID) (bool, error)

	// Heartbeat refreshes the holder's claim. Returns false when the lock
	// was lost (reclaimed by another replica).
	Heartbeat(ctx context.Context, holderID string) (bool, error)

	// Release gives the lock up. Releasing a lock not held is a no-op.
	Release(ctx context.Context, holderID string) error

	// Current reports the current holder.
	Current(ctx context.Context) (*Status, error)
}

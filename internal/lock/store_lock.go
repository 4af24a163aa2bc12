package lock

import (
	"context"
	"time"

	"github.com/zero-day-ai/conductor/internal/database"
	"github.com/zero-day-ai/conductor/internal/types"
)

// StoreLocker implements the distributed lock over the checkpoint
// database's singleton lock row. Suitable wherever all replicas share the
// database file or server.
type StoreLocker struct {
	dao            *database.LockDAO
	staleThreshold time.Duration
}

var _ Locker = (*StoreLocker)(nil)

// NewStoreLocker creates a store-backed locker. Locks unrefreshed past
// staleThreshold are reclaimable.
func NewStoreLocker(dao *database.LockDAO, staleThreshold time.Duration) *StoreLocker {
	if staleThreshold <= 0 {
		staleThreshold = 30 * time.Second
	}
	return &StoreLocker{dao: dao, staleThreshold: staleThreshold}
}

func (l *StoreLocker) TryAcquire(ctx context.Context, holderID string, threadID types.ID) (bool, error) {
	return l.dao.TryAcquire(ctx, holderID, threadID, l.staleThreshold)
}

func (l *StoreLocker) Heartbeat(ctx context.Context, holderID string) (bool, error) {
	return l.dao.Heartbeat(ctx, holderID)
}

func (l *StoreLocker) Release(ctx context.Context, holderID string) error {
	return l.dao.Release(ctx, holderID)
}

func (l *StoreLocker) Current(ctx context.Context) (*Status, error) {
	rec, err := l.dao.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Held: rec.Held, HolderID: rec.HolderID, ThreadID: rec.ThreadID}, nil
}

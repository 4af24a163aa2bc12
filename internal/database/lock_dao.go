package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// LockRecord is the singleton distributed lock row. At most one non-expired
// holder exists at any time; a holder whose heartbeat is older than the
// stale threshold may be force-reclaimed by any replica.
type LockRecord struct {
	HolderID    string
	ThreadID    types.ID
	HeartbeatAt time.Time
	Held        bool
}

// LockDAO provides atomic access to the singleton engine lock record.
// Every mutation is a single conditional UPDATE, so acquisition, refresh, and
// reclaim can race freely across replicas without a read-then-write window.
type LockDAO struct {
	db *DB
}

// NewLockDAO creates a LockDAO backed by db.
func NewLockDAO(db *DB) *LockDAO {
	return &LockDAO{db: db}
}

// TryAcquire attempts to take the lock for holderID on behalf of threadID.
// It succeeds when the lock is free or the current holder's heartbeat is
// older than staleThreshold. Returns false without error on contention.
func (d *LockDAO) TryAcquire(ctx context.Context, holderID string, threadID types.ID, staleThreshold time.Duration) (bool, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleThreshold)

	res, err := d.db.ExecContext(ctx, `
UPDATE engine_lock
SET holder_id = ?, thread_id = ?, heartbeat_at = ?
WHERE id = 1 AND (holder_id IS NULL OR heartbeat_at < ?)`,
		holderID, threadID.String(), now, staleCutoff,
	)
	if err != nil {
		return false, types.WrapError(types.DB_QUERY_FAILED, "lock acquisition failed", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, types.WrapError(types.DB_QUERY_FAILED, "failed to read rows affected", err)
	}
	return affected == 1, nil
}

// Heartbeat refreshes the holder's heartbeat timestamp. Returns false when
// the lock is no longer held by holderID, meaning it was reclaimed.
func (d *LockDAO) Heartbeat(ctx context.Context, holderID string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
UPDATE engine_lock SET heartbeat_at = ? WHERE id = 1 AND holder_id = ?`,
		time.Now().UTC(), holderID,
	)
	if err != nil {
		return false, types.WrapError(types.DB_QUERY_FAILED, "lock heartbeat failed", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, types.WrapError(types.DB_QUERY_FAILED, "failed to read rows affected", err)
	}
	return affected == 1, nil
}

// Release frees the lock if still held by holderID. Releasing a lock that
// was already reclaimed is not an error.
func (d *LockDAO) Release(ctx context.Context, holderID string) error {
	_, err := d.db.ExecContext(ctx, `
UPDATE engine_lock SET holder_id = NULL, thread_id = NULL, heartbeat_at = NULL
WHERE id = 1 AND holder_id = ?`, holderID)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "lock release failed", err)
	}
	return nil
}

// Current returns the current lock record.
func (d *LockDAO) Current(ctx context.Context) (*LockRecord, error) {
	var (
		holderID    sql.NullString
		threadID    sql.NullString
		heartbeatAt sql.NullTime
	)

	err := d.db.QueryRowContext(ctx,
		"SELECT holder_id, thread_id, heartbeat_at FROM engine_lock WHERE id = 1",
	).Scan(&holderID, &threadID, &heartbeatAt)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to read lock record", err)
	}

	rec := &LockRecord{Held: holderID.Valid && holderID.String != ""}
	if rec.Held {
		rec.HolderID = holderID.String
		rec.ThreadID = types.ID(threadID.String)
		rec.HeartbeatAt = heartbeatAt.Time
	}
	return rec, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// CheckpointRecord is the persisted form of a workflow checkpoint: the full
// serialized state snapshot plus the node cursor, keyed by thread id. The
// version column enforces optimistic concurrency: a writer must present the
// version it read, so two replicas can never interleave state mutations.
type CheckpointRecord struct {
	ThreadID   types.ID             `json:"thread_id"`
	Version    int64                `json:"version"`
	NodeCursor string               `json:"node_cursor"`
	Status     types.WorkflowStatus `json:"status"`
	State      []byte               `json:"state"`
	Checksum   string               `json:"checksum"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// CheckpointDAO provides durable access to workflow checkpoints.
type CheckpointDAO struct {
	db *DB
}

// NewCheckpointDAO creates a CheckpointDAO backed by db.
func NewCheckpointDAO(db *DB) *CheckpointDAO {
	return &CheckpointDAO{db: db}
}

// Save persists a checkpoint. rec.Version must be exactly one greater than
// the stored version (or 1 for a new thread); otherwise the write is
// rejected with CHECKPOINT_VERSION_CONFLICT. The update is a single
// conditional statement, never read-then-write.
func (d *CheckpointDAO) Save(ctx context.Context, rec *CheckpointRecord) error {
	now := time.Now().UTC()

	if rec.Version == 1 {
		_, err := d.db.ExecContext(ctx, `
INSERT INTO checkpoints (thread_id, version, node_cursor, status, state, checksum, created_at, updated_at)
VALUES (?, 1, ?, ?, ?, ?, ?, ?)`,
			rec.ThreadID.String(), rec.NodeCursor, string(rec.Status), rec.State, rec.Checksum, now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return types.NewError(types.CHECKPOINT_VERSION_CONFLICT,
					fmt.Sprintf("thread %s already has a checkpoint", rec.ThreadID))
			}
			return types.WrapError(types.CHECKPOINT_SAVE_FAILED, "failed to insert checkpoint", err)
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return nil
	}

	res, err := d.db.ExecContext(ctx, `
UPDATE checkpoints
SET version = ?, node_cursor = ?, status = ?, state = ?, checksum = ?, updated_at = ?
WHERE thread_id = ? AND version = ?`,
		rec.Version, rec.NodeCursor, string(rec.Status), rec.State, rec.Checksum, now,
		rec.ThreadID.String(), rec.Version-1,
	)
	if err != nil {
		return types.WrapError(types.CHECKPOINT_SAVE_FAILED, "failed to update checkpoint", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return types.WrapError(types.CHECKPOINT_SAVE_FAILED, "failed to read rows affected", err)
	}
	if affected == 0 {
		return types.NewError(types.CHECKPOINT_VERSION_CONFLICT,
			fmt.Sprintf("thread %s: expected stored version %d", rec.ThreadID, rec.Version-1))
	}

	rec.UpdatedAt = now
	return nil
}

// Get returns the checkpoint for a thread, or WORKFLOW_NOT_FOUND.
func (d *CheckpointDAO) Get(ctx context.Context, threadID types.ID) (*CheckpointRecord, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT thread_id, version, node_cursor, status, state, checksum, created_at, updated_at
FROM checkpoints WHERE thread_id = ?`, threadID.String())

	rec, err := scanCheckpoint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewError(types.WORKFLOW_NOT_FOUND,
				fmt.Sprintf("no checkpoint for thread %s", threadID))
		}
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to load checkpoint", err)
	}
	return rec, nil
}

// ListResumable returns checkpoints in a non-terminal status, oldest first.
// A surviving replica uses this at startup to resume workflows whose holder
// crashed mid-run.
func (d *CheckpointDAO) ListResumable(ctx context.Context) ([]*CheckpointRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT thread_id, version, node_cursor, status, state, checksum, created_at, updated_at
FROM checkpoints
WHERE status IN (?, ?, ?)
ORDER BY updated_at ASC`,
		string(types.WorkflowStatusPending),
		string(types.WorkflowStatusRunning),
		string(types.WorkflowStatusInterrupted),
	)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to list resumable checkpoints", err)
	}
	defer rows.Close()

	var records []*CheckpointRecord
	for rows.Next() {
		rec, err := scanCheckpoint(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan checkpoint", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneTerminal deletes checkpoints of terminal workflows older than ttl.
// Returns the number of pruned rows.
func (d *CheckpointDAO) PruneTerminal(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	res, err := d.db.ExecContext(ctx, `
DELETE FROM checkpoints
WHERE status IN (?, ?, ?) AND updated_at < ?`,
		string(types.WorkflowStatusDone),
		string(types.WorkflowStatusError),
		string(types.WorkflowStatusCancelled),
		cutoff,
	)
	if err != nil {
		return 0, types.WrapError(types.DB_QUERY_FAILED, "failed to prune checkpoints", err)
	}
	return res.RowsAffected()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*CheckpointRecord, error) {
	var (
		rec      CheckpointRecord
		threadID string
		status   string
	)
	err := row.Scan(&threadID, &rec.Version, &rec.NodeCursor, &status, &rec.State,
		&rec.Checksum, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.ThreadID = types.ID(threadID)
	rec.Status = types.WorkflowStatus(status)
	return &rec, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// ContextScope names a level of the hierarchical context store. Higher
// levels hold compact summaries; the step level holds full detail.
type ContextScope string

const (
	ScopeEpic ContextScope = "epic"
	ScopeGoal ContextScope = "goal"
	ScopeStep ContextScope = "step"
)

// ContextEntry is one row of the TTL-bounded hierarchical context store,
// keyed by (thread id, scope, scope key).
type ContextEntry struct {
	ThreadID  types.ID
	Scope     ContextScope
	ScopeKey  string
	Content   string
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// ContextDAO persists hierarchical workflow context.
type ContextDAO struct {
	db *DB
}

// NewContextDAO creates a ContextDAO backed by db.
func NewContextDAO(db *DB) *ContextDAO {
	return &ContextDAO{db: db}
}

// Put upserts a context entry with the given TTL.
func (d *ContextDAO) Put(ctx context.Context, threadID types.ID, scope ContextScope, scopeKey, content string, ttl time.Duration) error {
	now := time.Now().UTC()

	_, err := d.db.ExecContext(ctx, `
INSERT INTO contexts (thread_id, scope, scope_key, content, updated_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(thread_id, scope, scope_key)
DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at, expires_at = excluded.expires_at`,
		threadID.String(), string(scope), scopeKey, content, now, now.Add(ttl),
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to store context entry", err)
	}
	return nil
}

// Get returns a context entry's content, or ("", false) when absent or expired.
func (d *ContextDAO) Get(ctx context.Context, threadID types.ID, scope ContextScope, scopeKey string) (string, bool, error) {
	var content string
	err := d.db.QueryRowContext(ctx, `
SELECT content FROM contexts
WHERE thread_id = ? AND scope = ? AND scope_key = ? AND expires_at > ?`,
		threadID.String(), string(scope), scopeKey, time.Now().UTC(),
	).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, types.WrapError(types.DB_QUERY_FAILED, "failed to load context entry", err)
	}
	return content, true, nil
}

// ListScope returns all live entries for a thread at the given scope,
// ordered by scope key.
func (d *ContextDAO) ListScope(ctx context.Context, threadID types.ID, scope ContextScope) ([]ContextEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT thread_id, scope, scope_key, content, updated_at, expires_at
FROM contexts
WHERE thread_id = ? AND scope = ? AND expires_at > ?
ORDER BY scope_key ASC`,
		threadID.String(), string(scope), time.Now().UTC(),
	)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to list context entries", err)
	}
	defer rows.Close()

	var entries []ContextEntry
	for rows.Next() {
		var (
			e        ContextEntry
			threadID string
			scope    string
		)
		if err := rows.Scan(&threadID, &scope, &e.ScopeKey, &e.Content, &e.UpdatedAt, &e.ExpiresAt); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan context entry", err)
		}
		e.ThreadID = types.ID(threadID)
		e.Scope = ContextScope(scope)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneExpired removes expired context entries, returning the pruned count.
func (d *ContextDAO) PruneExpired(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"DELETE FROM contexts WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, types.WrapError(types.DB_QUERY_FAILED, "failed to prune context entries", err)
	}
	return res.RowsAffected()
}

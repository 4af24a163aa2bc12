package database

import (
	"context"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// PatternRecord is one entry of the procedural-memory store: a plan shape
// that previously led to a successful finalize, keyed by request category.
type PatternRecord struct {
	ID           types.ID
	Category     string
	GoalText     string
	PlanSummary  string
	SuccessCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PatternDAO persists successful execution patterns.
type PatternDAO struct {
	db *DB
}

// NewPatternDAO creates a PatternDAO backed by db.
func NewPatternDAO(db *DB) *PatternDAO {
	return &PatternDAO{db: db}
}

// Record stores a successful pattern. An existing pattern with the same
// category and goal text has its success count incremented instead.
func (d *PatternDAO) Record(ctx context.Context, category, goalText, planSummary string) error {
	now := time.Now().UTC()

	res, err := d.db.ExecContext(ctx, `
UPDATE patterns
SET success_count = success_count + 1, plan_summary = ?, updated_at = ?
WHERE category = ? AND goal_text = ?`,
		planSummary, now, category, goalText,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to update pattern", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to read rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = d.db.ExecContext(ctx, `
INSERT INTO patterns (id, category, goal_text, plan_summary, success_count, created_at, updated_at)
VALUES (?, ?, ?, ?, 1, ?, ?)`,
		types.NewID().String(), category, goalText, planSummary, now, now,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to insert pattern", err)
	}
	return nil
}

// BestForCategory returns up to limit patterns for a category, most
// frequently successful first. Used by the planner as few-shot hints.
func (d *PatternDAO) BestForCategory(ctx context.Context, category string, limit int) ([]PatternRecord, error) {
	if limit <= 0 {
		limit = 3
	}

	rows, err := d.db.QueryContext(ctx, `
SELECT id, category, goal_text, plan_summary, success_count, created_at, updated_at
FROM patterns
WHERE category = ?
ORDER BY success_count DESC, updated_at DESC
LIMIT ?`, category, limit)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to query patterns", err)
	}
	defer rows.Close()

	var records []PatternRecord
	for rows.Next() {
		var (
			rec PatternRecord
			id  string
		)
		if err := rows.Scan(&id, &rec.Category, &rec.GoalText, &rec.PlanSummary,
			&rec.SuccessCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan pattern", err)
		}
		rec.ID = types.ID(id)
		records = append(records, rec)
	}
	return records, rows.Err()
}

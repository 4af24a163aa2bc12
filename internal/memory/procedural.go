package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/conductor/internal/database"
)

// ProceduralMemory records which plan shapes succeeded for which request
// categories and feeds them back to the planner as hints. It learns across
// workflows; nothing here is required for correctness.
type ProceduralMemory struct {
	dao    *database.PatternDAO
	logger *slog.Logger
}

// NewProceduralMemory creates a procedural memory over the pattern table.
func NewProceduralMemory(dao *database.PatternDAO, logger *slog.Logger) *ProceduralMemory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProceduralMemory{dao: dao, logger: logger}
}

// RecordSuccess stores a successful plan shape for a request category.
// Failures are deliberately not stored; a pattern that worked once is a
// hint, a pattern that failed tells the planner nothing reusable.
func (m *ProceduralMemory) RecordSuccess(ctx context.Context, category, goalText, planSummary string) {
	if err := m.dao.Record(ctx, category, goalText, planSummary); err != nil {
		// Hint bookkeeping never fails a workflow.
		m.logger.Warn("failed to record plan pattern", "category", category, "error", err)
	}
}

// PlannerHints returns prompt-ready lines describing plan shapes that
// previously succeeded for the category.
func (m *ProceduralMemory) PlannerHints(ctx context.Context, category string) []string {
	records, err := m.dao.BestForCategory(ctx, category, 3)
	if err != nil {
		m.logger.Warn("failed to load plan patterns", "category", category, "error", err)
		return nil
	}

	hints := make([]string, 0, len(records))
	for _, rec := range records {
		hints = append(hints, fmt.Sprintf("%q previously succeeded with: %s (seen %d times)",
			rec.GoalText, rec.PlanSummary, rec.SuccessCount))
	}
	return hints
}

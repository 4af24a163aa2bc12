package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/zero-day-ai/conductor/internal/database"
	"github.com/zero-day-ai/conductor/internal/types"
)

// ContextStore is the hierarchical durable context layer. Wide scopes hold
// compact summaries, narrow scopes hold detail: the epic scope frames the
// whole request, goal entries summarize completed goals, step entries keep
// full step output until they expire.
type ContextStore struct {
	dao    *database.ContextDAO
	ttl    time.Duration
	logger *slog.Logger
}

// NewContextStore creates a context store over the durable context table.
// A non-positive ttl defaults to 24 hours.
func NewContextStore(dao *database.ContextDAO, ttl time.Duration, logger *slog.Logger) *ContextStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextStore{dao: dao, ttl: ttl, logger: logger}
}

// PutEpicFrame stores the top-level framing of the request.
func (s *ContextStore) PutEpicFrame(ctx context.Context, threadID types.ID, frame string) error {
	return s.dao.Put(ctx, threadID, database.ScopeEpic, "frame", frame, s.ttl)
}

// EpicFrame returns the top-level framing, if present.
func (s *ContextStore) EpicFrame(ctx context.Context, threadID types.ID) (string, bool, error) {
	return s.dao.Get(ctx, threadID, database.ScopeEpic, "frame")
}

// PutGoalSummary stores the compact summary of a completed goal.
func (s *ContextStore) PutGoalSummary(ctx context.Context, threadID types.ID, goalID, summary string) error {
	return s.dao.Put(ctx, threadID, database.ScopeGoal, goalID, summary, s.ttl)
}

// GoalSummaries returns every goal summary for the thread in key order.
func (s *ContextStore) GoalSummaries(ctx context.Context, threadID types.ID) ([]database.ContextEntry, error) {
	return s.dao.ListScope(ctx, threadID, database.ScopeGoal)
}

// PutStepDetail stores the full output of a step. Step entries live at
// half the configured TTL; detail ages out before summaries do.
func (s *ContextStore) PutStepDetail(ctx context.Context, threadID types.ID, stepID, detail string) error {
	return s.dao.Put(ctx, threadID, database.ScopeStep, stepID, detail, s.ttl/2)
}

// StepDetail returns the stored output of a step. When the detail has
// expired, callers fall back to the owning goal's summary.
func (s *ContextStore) StepDetail(ctx context.Context, threadID types.ID, stepID string) (string, bool, error) {
	return s.dao.Get(ctx, threadID, database.ScopeStep, stepID)
}

// Prune removes expired entries across all threads.
func (s *ContextStore) Prune(ctx context.Context) (int64, error) {
	pruned, err := s.dao.PruneExpired(ctx)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		s.logger.Debug("pruned expired context entries", "count", pruned)
	}
	return pruned, nil
}

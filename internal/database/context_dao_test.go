package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/types"
)

func TestContextDAO_PutGetRoundTrip(t *testing.T) {
	dao := NewContextDAO(newTestDB(t))
	ctx := context.Background()
	threadID := types.NewID()

	require.NoError(t, dao.Put(ctx, threadID, ScopeStep, "step-1", "full step detail", time.Hour))

	content, ok, err := dao.Get(ctx, threadID, ScopeStep, "step-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "full step detail", content)

	// Upsert replaces content.
	require.NoError(t, dao.Put(ctx, threadID, ScopeStep, "step-1", "revised detail", time.Hour))
	content, ok, err = dao.Get(ctx, threadID, ScopeStep, "step-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "revised detail", content)
}

func TestContextDAO_Expiry(t *testing.T) {
	dao := NewContextDAO(newTestDB(t))
	ctx := context.Background()
	threadID := types.NewID()

	require.NoError(t, dao.Put(ctx, threadID, ScopeGoal, "goal-1", "summary", -time.Second))

	_, ok, err := dao.Get(ctx, threadID, ScopeGoal, "goal-1")
	require.NoError(t, err)
	assert.False(t, ok)

	pruned, err := dao.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestContextDAO_ListScope_TenantIsolation(t *testing.T) {
	dao := NewContextDAO(newTestDB(t))
	ctx := context.Background()

	threadA := types.NewID()
	threadB := types.NewID()

	require.NoError(t, dao.Put(ctx, threadA, ScopeGoal, "goal-1", "a1", time.Hour))
	require.NoError(t, dao.Put(ctx, threadA, ScopeGoal, "goal-2", "a2", time.Hour))
	require.NoError(t, dao.Put(ctx, threadA, ScopeStep, "step-1", "detail", time.Hour))
	require.NoError(t, dao.Put(ctx, threadB, ScopeGoal, "goal-1", "b1", time.Hour))

	entries, err := dao.ListScope(ctx, threadA, ScopeGoal)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "goal-1", entries[0].ScopeKey)
	assert.Equal(t, "a1", entries[0].Content)
	assert.Equal(t, "goal-2", entries[1].ScopeKey)
}

func TestPatternDAO_RecordAndQuery(t *testing.T) {
	dao := NewPatternDAO(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, dao.Record(ctx, "single-task", "refactor module", "2 goals / 5 steps"))
	require.NoError(t, dao.Record(ctx, "single-task", "refactor module", "2 goals / 5 steps"))
	require.NoError(t, dao.Record(ctx, "single-task", "rename package", "1 goal / 2 steps"))
	require.NoError(t, dao.Record(ctx, "epic", "migrate framework", "4 goals"))

	records, err := dao.BestForCategory(ctx, "single-task", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "refactor module", records[0].GoalText)
	assert.Equal(t, 2, records[0].SuccessCount)
}

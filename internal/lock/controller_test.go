package lock

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/database"
	"github.com/zero-day-ai/conductor/internal/types"
)

func newStoreLocker(t *testing.T) (*StoreLocker, *database.DB) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "conductor.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	return NewStoreLocker(database.NewLockDAO(db), 30*time.Second), db
}

func TestController_AcquireReleaseCycle(t *testing.T) {
	locker, _ := newStoreLocker(t)
	controller := NewController(locker, "replica-a", time.Minute)
	ctx := context.Background()
	threadID := types.NewID()

	assert.False(t, controller.Busy())
	require.NoError(t, controller.Acquire(ctx, threadID))
	assert.True(t, controller.Busy())

	active, held := controller.ActiveThread()
	assert.True(t, held)
	assert.Equal(t, threadID, active)

	require.NoError(t, controller.Release(ctx))
	assert.False(t, controller.Busy())

	// Released slot is reusable.
	require.NoError(t, controller.Acquire(ctx, types.NewID()))
	require.NoError(t, controller.Release(ctx))
}

func TestController_RejectsWhileBusy(t *testing.T) {
	locker, _ := newStoreLocker(t)
	controller := NewController(locker, "replica-a", time.Minute)
	ctx := context.Background()

	require.NoError(t, controller.Acquire(ctx, types.NewID()))

	err := controller.Acquire(ctx, types.NewID())
	require.Error(t, err)
	// Rejected, never queued; callers retry.
	assert.Equal(t, types.LOCK_CONTENTION, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestController_DistributedContention(t *testing.T) {
	locker, db := newStoreLocker(t)
	a := NewController(locker, "replica-a", time.Minute)
	b := NewController(NewStoreLocker(database.NewLockDAO(db), 30*time.Second), "replica-b", time.Minute)
	ctx := context.Background()

	require.NoError(t, a.Acquire(ctx, types.NewID()))

	err := b.Acquire(ctx, types.NewID())
	require.Error(t, err)
	assert.Equal(t, types.LOCK_CONTENTION, types.CodeOf(err))

	require.NoError(t, a.Release(ctx))
	assert.NoError(t, b.Acquire(ctx, types.NewID()))
	require.NoError(t, b.Release(ctx))
}

func TestController_SingleFlightBurst(t *testing.T) {
	locker, _ := newStoreLocker(t)
	ctx := context.Background()

	const n = 8
	controller := NewController(locker, "replica-a", time.Minute)

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- controller.Acquire(ctx, types.NewID())
		}()
	}
	wg.Wait()
	close(results)

	acquired := 0
	for err := range results {
		if err == nil {
			acquired++
		} else {
			assert.Equal(t, types.LOCK_CONTENTION, types.CodeOf(err))
		}
	}
	assert.Equal(t, 1, acquired)
}

func TestController_LostLockInvokesHandler(t *testing.T) {
	locker, db := newStoreLocker(t)
	ctx := context.Background()

	lost := make(chan types.ID, 1)
	controller := NewController(locker, "replica-a", 10*time.Millisecond,
		WithLostHandler(func(threadID types.ID) { lost <- threadID }))

	threadID := types.NewID()
	require.NoError(t, controller.Acquire(ctx, threadID))

	// Another replica force-reclaims by aging the heartbeat and acquiring.
	_, err := db.ExecContext(ctx,
		"UPDATE engine_lock SET heartbeat_at = ? WHERE id = 1",
		time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	ok, err := locker.TryAcquire(ctx, "replica-b", types.NewID())
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case lostThread := <-lost:
		assert.Equal(t, threadID, lostThread)
	case <-time.After(2 * time.Second):
		t.Fatal("lost-lock handler was not invoked")
	}
	assert.False(t, controller.Busy())
}

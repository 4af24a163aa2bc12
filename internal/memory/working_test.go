package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingMemory_SetGetDelete(t *testing.T) {
	wm := NewWorkingMemory(1000)

	wm.Set("thread-1/scratch", "current hypothesis")
	got, ok := wm.Get("thread-1/scratch")
	require.True(t, ok)
	assert.Equal(t, "current hypothesis", got)

	assert.True(t, wm.Delete("thread-1/scratch"))
	assert.False(t, wm.Delete("thread-1/scratch"))

	_, ok = wm.Get("thread-1/scratch")
	assert.False(t, ok)
}

func TestWorkingMemory_OverwriteAdjustsTokens(t *testing.T) {
	wm := NewWorkingMemory(1000)

	wm.Set("k", strings.Repeat("a", 400))
	first := wm.TokenCount()
	wm.Set("k", "tiny")
	assert.Less(t, wm.TokenCount(), first)
}

func TestWorkingMemory_LRUEviction(t *testing.T) {
	// Budget fits roughly two of the three entries.
	wm := NewWorkingMemory(50)

	wm.Set("old", strings.Repeat("a", 100))
	wm.Set("mid", strings.Repeat("b", 100))

	// Touch "old" so "mid" becomes the eviction candidate.
	_, ok := wm.Get("old")
	require.True(t, ok)

	wm.Set("new", strings.Repeat("c", 100))

	_, ok = wm.Get("new")
	assert.True(t, ok, "freshly written entry is never evicted")
	_, midOK := wm.Get("mid")
	_, oldOK := wm.Get("old")
	assert.False(t, midOK && oldOK, "budget pressure must evict an older entry")
}

func TestWorkingMemory_Clear(t *testing.T) {
	wm := NewWorkingMemory(1000)
	wm.Set("a", "x")
	wm.Set("b", "y")

	wm.Clear()
	assert.Zero(t, wm.TokenCount())
	_, ok := wm.Get("a")
	assert.False(t, ok)
}

package memory

import (
	"sync"
	"time"

	"github.com/zero-day-ai/conductor/internal/llm"
)

// WorkingMemory is the ephemeral per-process session cache. It holds the
// conversational scratch state of active workflows under a token budget;
// anything that must survive a restart belongs in the checkpoint store,
// not here.
type WorkingMemory interface {
	// Get retrieves a value by key and refreshes its recency.
	Get(key string) (string, bool)

	// Set stores a value, evicting least-recently-used entries when the
	// token budget is exceeded.
	Set(key, value string)

	// Delete removes an entry. Returns true if it existed.
	Delete(key string) bool

	// Clear removes all entries.
	Clear()

	// TokenCount returns the current estimated token usage.
	TokenCount() int
}

type workingEntry struct {
	value      string
	tokens     int
	accessedAt time.Time
}

// DefaultWorkingMemory implements WorkingMemory with LRU eviction.
type DefaultWorkingMemory struct {
	mu        sync.Mutex
	entries   map[string]*workingEntry
	tokens    int
	maxTokens int
}

var _ WorkingMemory = (*DefaultWorkingMemory)(nil)

// NewWorkingMemory creates a working memory with the given token budget.
// A non-positive budget defaults to 100000 tokens.
func NewWorkingMemory(maxTokens int) *DefaultWorkingMemory {
	if maxTokens <= 0 {
		maxTokens = 100000
	}
	return &DefaultWorkingMemory{
		entries:   make(map[string]*workingEntry),
		maxTokens: maxTokens,
	}
}

func (m *DefaultWorkingMemory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false
	}
	entry.accessedAt = time.Now()
	return entry.value, true
}

func (m *DefaultWorkingMemory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := llm.EstimateTokens(value)
	if old, ok := m.entries[key]; ok {
		m.tokens -= old.tokens
	}
	m.entries[key] = &workingEntry{
		value:      value,
		tokens:     tokens,
		accessedAt: time.Now(),
	}
	m.tokens += tokens

	for m.tokens > m.maxTokens && len(m.entries) > 1 {
		m.evictOldest(key)
	}
}

// evictOldest drops the least recently used entry, never the one just
// written.
func (m *DefaultWorkingMemory) evictOldest(protect string) {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range m.entries {
		if key == protect {
			continue
		}
		if oldestKey == "" || entry.accessedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.accessedAt
		}
	}
	if oldestKey == "" {
		return
	}
	m.tokens -= m.entries[oldestKey].tokens
	delete(m.entries, oldestKey)
}

func (m *DefaultWorkingMemory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return false
	}
	m.tokens -= entry.tokens
	delete(m.entries, key)
	return true
}

func (m *DefaultWorkingMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*workingEntry)
	m.tokens = 0
}

func (m *DefaultWorkingMemory) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

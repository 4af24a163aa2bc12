package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Registry holds the configured model providers by name. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its name, replacing any previous entry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, types.NewError(types.MODEL_UNAVAILABLE,
			fmt.Sprintf("no provider registered under %q", name))
	}
	return p, nil
}

// Has reports whether a provider is registered under name. Used to decide
// whether escalation to a paid provider is even possible.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// List returns the registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health aggregates the health of every registered provider.
func (r *Registry) Health(ctx context.Context) map[string]types.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]types.HealthStatus, len(r.providers))
	for name, p := range r.providers {
		result[name] = p.Health(ctx)
	}
	return result
}

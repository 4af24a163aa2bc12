package delegation

import (
	"context"
	"sync"
)

// Subdelegator lets an agent hand part of its task to another agent. The
// executor validates depth and cycle invariants before dispatching the
// child.
type Subdelegator interface {
	Delegate(ctx context.Context, child Message) (*AgentOutput, error)
}

// Agent handles one delegation message. Implementations must scope any
// retrieval to the message's tenant and workspace ids.
type Agent interface {
	Name() string
	Handle(ctx context.Context, msg Message, sub Subdelegator) (*AgentOutput, error)
}

// Registry resolves agent names to handlers, falling back to a generic
// handler when no specialist is registered.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]Agent
	fallback Agent
}

// NewRegistry creates a registry with the given fallback agent.
func NewRegistry(fallback Agent) *Registry {
	return &Registry{
		agents:   make(map[string]Agent),
		fallback: fallback,
	}
}

// Register adds a specialist agent under its name.
func (r *Registry) Register(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Name()] = agent
}

// Resolve returns the agent for a name, or the fallback.
func (r *Registry) Resolve(name string) Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if agent, ok := r.agents[name]; ok {
		return agent
	}
	return r.fallback
}

// Names returns the registered specialist names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}

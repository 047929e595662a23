package signing

import (
	"fmt"
	"sync"

	"github.com/sand/solnests/backend/internal/core/ports"
)

// Registry holds the signing agents available to the process, one per name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]ports.SigningAgent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]ports.SigningAgent)}
}

// Register adds an agent under its own name. Registering the same name twice is an error.
func (r *Registry) Register(agent ports.SigningAgent) error {
	if agent == nil {
		return fmt.Errorf("cannot register nil signing agent")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.Name()]; exists {
		return fmt.Errorf("signing agent %q already registered", agent.Name())
	}
	r.agents[agent.Name()] = agent

	return nil
}

// Lookup returns the agent registered under name.
func (r *Registry) Lookup(name string) (ports.SigningAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrAgentUnavailable, name)
	}
	return agent, nil
}

package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps protocol names to gateway implementations. Registration
// happens at wiring time; lookups happen on every dispatched instruction.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds a gateway under its own name. Registering the same name
// twice is a wiring bug and fails.
func (r *Registry) Register(gw Gateway) error {
	name := gw.Name()
	if name == "" {
		return fmt.Errorf("gateway has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.gateways[name]; dup {
		return fmt.Errorf("gateway %q already registered", name)
	}
	r.gateways[name] = gw
	return nil
}

// Get resolves a protocol name to its gateway.
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return gw, nil
}

// Names returns all registered protocol names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

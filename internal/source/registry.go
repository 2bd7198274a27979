package source

import "sync"

// Registry holds all registered source adapters keyed by name.
type Registry struct {
	mu      sync.RWMutex
	clients map[Name]Client
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[Name]Client),
	}
}

// Register adds a source client to the registry.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Get returns a source client by name, or nil if not registered.
func (r *Registry) Get(name Name) Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[name]
}

// All returns all registered clients in resolution priority order.
func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Client
	for _, name := range AllNames() {
		if c, ok := r.clients[name]; ok {
			result = append(result, c)
		}
	}
	return result
}

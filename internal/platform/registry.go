package platform

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages platform registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]Platform
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		platforms: make(map[string]Platform),
	}
}

// Register adds a platform to the registry.
// Panics if a platform with the same name is already registered.
func (r *Registry) Register(p Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.platforms[name]; exists {
		panic(fmt.Sprintf("platform %q already registered", name))
	}
	r.platforms[name] = p
}

// Get retrieves a platform by name.
// Returns nil if no platform is found.
func (r *Registry) Get(name string) Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.platforms[name]
}

// All returns all registered platforms in detection order:
// ascending priority, then name.
func (r *Registry) All() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Platform, 0, len(r.platforms))
	for _, p := range r.platforms {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority() != result[j].Priority() {
			return result[i].Priority() < result[j].Priority()
		}
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Names returns all registered platform names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry is the global default registry.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global default registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a platform to the default registry.
func Register(p Platform) {
	defaultRegistry.Register(p)
}

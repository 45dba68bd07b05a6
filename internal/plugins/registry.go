// -----------------------------------------------------------------------
// Plugin Registry - Name to adapter resolution
// -----------------------------------------------------------------------

package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/venator/internal/interfaces"
)

// Registry is the process-wide plugin adapter registry. Registration
// happens during startup; resolution is read-heavy afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]interfaces.PluginAdapter
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]interfaces.PluginAdapter),
	}
}

// Register adds an adapter under its name. Duplicate names are an error so
// a misconfigured startup fails loudly instead of shadowing a plugin.
func (r *Registry) Register(adapter interfaces.PluginAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if name == "" {
		return fmt.Errorf("plugin adapter has empty name")
	}
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("plugin already registered: %s", name)
	}
	r.adapters[name] = adapter
	return nil
}

// Resolve returns the adapter for a plugin name.
func (r *Registry) Resolve(name string) (interfaces.PluginAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin: %s", name)
	}
	return adapter, nil
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

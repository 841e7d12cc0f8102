package collector

import (
	"fmt"
	"sort"
	"sync"

	"telemetrychannel/internal/config"
)

// Registry manages collector registration and configuration.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
}

// NewRegistry creates a new collector registry.
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
	}
}

// Register adds a collector to the registry.
func (r *Registry) Register(c Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.collectors[name]; exists {
		return fmt.Errorf("collector %s already registered", name)
	}

	r.collectors[name] = c
	return nil
}

// Get retrieves a collector by name.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collectors[name]
	return c, ok
}

// All returns all registered collectors ordered by name.
func (r *Registry) All() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Collector, 0, len(r.collectors))
	for _, c := range r.collectors {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Configure applies configuration to the registered collectors named in configs.
// Names without a registered collector are ignored.
func (r *Registry) Configure(configs map[string]config.CollectorConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, cfg := range configs {
		if c, ok := r.collectors[name]; ok {
			if err := c.Configure(cfg); err != nil {
				return fmt.Errorf("failed to configure collector %s: %w", name, err)
			}
		}
	}
	return nil
}

// EnabledCollectors returns only the enabled collectors, ordered by name.
func (r *Registry) EnabledCollectors() []Collector {
	var result []Collector
	for _, c := range r.All() {
		if c.Enabled() {
			result = append(result, c)
		}
	}
	return result
}

// DefaultRegistry creates a registry with all built-in collectors registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	_ = r.Register(NewCPUCollector())
	_ = r.Register(NewMemoryCollector())
	_ = r.Register(NewDiskCollector())
	_ = r.Register(NewUptimeCollector())

	return r
}

package collector

import (
	"fmt"
	"sort"
)

// Registry holds the named collectors indicators reference through their
// sourceRef.
type Registry struct {
	collectors map[string]Collector
}

func NewRegistry(collectors map[string]Collector) *Registry {
	return &Registry{collectors: collectors}
}

// Build opens a collector per configured source. On any failure the already
// opened collectors are closed before the error is returned.
func Build(sources map[string]ConnectionConfig) (*Registry, error) {
	collectors := map[string]Collector{}
	for name, cfg := range sources {
		col, err := New(cfg)
		if err != nil {
			for _, opened := range collectors {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		collectors[name] = col
	}
	return NewRegistry(collectors), nil
}

func (r *Registry) For(sourceRef string) (Collector, error) {
	col, ok := r.collectors[sourceRef]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceRef)
	}
	return col, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Close() {
	for _, col := range r.collectors {
		_ = col.Close()
	}
}

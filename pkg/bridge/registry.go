package bridge

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Registry tracks live bridges. One is created per process and injected
// where needed.
type Registry struct {
	mu      sync.RWMutex
	bridges map[string]*Bridge
	total   atomic.Int64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]*Bridge)}
}

// Add registers b.
func (r *Registry) Add(b *Bridge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bridges[b.ID()]; !ok {
		r.total.Add(1)
	}
	r.bridges[b.ID()] = b
}

// Remove unregisters the bridge with id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bridges, id)
}

// Get returns the bridge with id.
func (r *Registry) Get(id string) (*Bridge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bridges[id]
	return b, ok
}

// Len returns the number of live bridges.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bridges)
}

// Total returns how many bridges were ever registered.
func (r *Registry) Total() int64 {
	return r.total.Load()
}

// List returns a snapshot of every live bridge, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	bridges := make([]*Bridge, 0, len(r.bridges))
	for _, b := range r.bridges {
		bridges = append(bridges, b)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(bridges))
	for _, b := range bridges {
		infos = append(infos, b.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// CloseAll tears down every live bridge.
func (r *Registry) CloseAll(reason string) {
	r.mu.RLock()
	bridges := make([]*Bridge, 0, len(r.bridges))
	for _, b := range r.bridges {
		bridges = append(bridges, b)
	}
	r.mu.RUnlock()

	for _, b := range bridges {
		b.Shutdown(reason)
	}
}

package page

import "sync"

// Registry tracks open tabs and which one is active.
type Registry struct {
	mu     sync.RWMutex
	tabs   map[string]*Tab
	order  []string
	active string
}

func NewRegistry() *Registry {
	return &Registry{tabs: make(map[string]*Tab)}
}

// Add registers a tab. The first tab becomes the active one.
func (r *Registry) Add(t *Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tabs[t.ID()]; !ok {
		r.order = append(r.order, t.ID())
	}
	r.tabs[t.ID()] = t
	if r.active == "" {
		r.active = t.ID()
	}
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.active == id {
		r.active = ""
		if len(r.order) > 0 {
			r.active = r.order[0]
		}
	}
}

func (r *Registry) Get(id string) (*Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tabs[id]
	return t, ok
}

func (r *Registry) Active() (*Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tabs[r.active]
	return t, ok
}

// Activate makes id the active tab. It returns false for unknown tabs.
func (r *Registry) Activate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tabs[id]; !ok {
		return false
	}
	r.active = id
	return true
}

// All returns tabs in the order they were added.
func (r *Registry) All() []*Tab {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tab, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tabs[id])
	}
	return out
}

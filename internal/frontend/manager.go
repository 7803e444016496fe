package frontend

import (
	"sort"
	"sync"
)

// Manager holds every frontend entity by name
type Manager struct {
	mu        sync.RWMutex
	frontends map[string]*Frontend
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{frontends: make(map[string]*Frontend)}
}

// Add registers f. It reports false and keeps the existing entity when the
// name is taken.
func (m *Manager) Add(f *Frontend) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.frontends[f.Name()]; ok {
		return false
	}
	m.frontends[f.Name()] = f
	return true
}

// Get finds a frontend by exact name, then by slug
func (m *Manager) Get(name string) (*Frontend, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.frontends[name]; ok {
		return f, true
	}
	slug := Slug(name)
	for n, f := range m.frontends {
		if Slug(n) == slug {
			return f, true
		}
	}
	return nil, false
}

// List returns the frontends sorted by name
func (m *Manager) List() []*Frontend {
	m.mu.RLock()
	out := make([]*Frontend, 0, len(m.frontends))
	for _, f := range m.frontends {
		out = append(out, f)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Snapshots returns the state of every frontend
func (m *Manager) Snapshots() []State {
	list := m.List()
	out := make([]State, 0, len(list))
	for _, f := range list {
		out = append(out, f.Snapshot())
	}
	return out
}

package cache

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and cache-disabled builds.
// Each instance owns its own map, so parallel tests stay isolated.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: map[string]*Entry{}}
}

func (m *Memory) Load(ctx context.Context) (map[string]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*Entry, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.Clone()
	}
	return out, nil
}

func (m *Memory) Put(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.UnitID] = e.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, unitIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range unitIDs {
		delete(m.entries, id)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

package vklayer

import "sync"

// MemoryStore is an in-process Store, used where no OS registry exists.
type MemoryStore struct {
	mu     sync.Mutex
	values map[memKey]struct{}
	// FailSet, when non-nil, is returned by every Set call.
	FailSet error
}

type memKey struct {
	scope Scope
	view  View
	name  string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[memKey]struct{})}
}

// Set implements Store.
func (m *MemoryStore) Set(scope Scope, view View, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		return m.FailSet
	}
	m.values[memKey{scope, view, name}] = struct{}{}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(scope Scope, view View, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, memKey{scope, view, name})
	return nil
}

// Has implements Store.
func (m *MemoryStore) Has(scope Scope, view View, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[memKey{scope, view, name}]
	return ok, nil
}

// Len returns the number of registered values.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

package store

import "sync"

// MemStore is an in-memory ResponseStore for testing and ephemeral use.
type MemStore struct {
	mutex  *sync.RWMutex
	stores map[string]map[string]Entry
}

func NewMemStore() MemStore {
	return MemStore{
		mutex:  &sync.RWMutex{},
		stores: make(map[string]map[string]Entry),
	}
}

func (m MemStore) Open(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.stores[name]; !ok {
		m.stores[name] = make(map[string]Entry)
	}
	return nil
}

func (m MemStore) Match(name, key string) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries, ok := m.stores[name]
	if !ok {
		return Entry{}, false, nil
	}
	entry, ok := entries[key]
	return entry, ok, nil
}

func (m MemStore) Put(name, key string, entry Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries, ok := m.stores[name]
	if !ok {
		entries = make(map[string]Entry)
		m.stores[name] = entries
	}
	entry.Key = key
	entries[key] = entry
	return nil
}

func (m MemStore) Delete(name, key string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries, ok := m.stores[name]
	if !ok {
		return false, nil
	}
	if _, ok := entries[key]; !ok {
		return false, nil
	}
	delete(entries, key)
	return true, nil
}

func (m MemStore) Names() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	return names, nil
}

func (m MemStore) DeleteStore(name string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.stores[name]; !ok {
		return false, nil
	}
	delete(m.stores, name)
	return true, nil
}

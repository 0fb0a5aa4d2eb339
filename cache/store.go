package cache

import "time"

// Store is the persistence boundary behind Cache. Implementations do not
// lock; Cache serializes access.
type Store interface {
	get(key string) (Entry, bool, error)
	put(e Entry) error
	clear() error
	expire(before time.Time) (int, error)
	size() (int, error)
}

// memoryStore is the default map-backed store.
type memoryStore struct {
	entries map[string]Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]Entry)}
}

func (m *memoryStore) get(key string) (Entry, bool, error) {
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *memoryStore) put(e Entry) error {
	m.entries[e.Key] = e
	return nil
}

func (m *memoryStore) clear() error {
	m.entries = make(map[string]Entry)
	return nil
}

func (m *memoryStore) expire(before time.Time) (int, error) {
	n := 0
	for k, e := range m.entries {
		if !e.Timestamp.After(before) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) size() (int, error) {
	return len(m.entries), nil
}

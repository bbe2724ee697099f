package store

import "sync"

// MemoryStore is a Store that never touches disk.
type MemoryStore struct {
	mu    sync.Mutex
	rec   Record
	Saves int

	// SaveError, if set, is returned by Save.
	SaveError error
}

// NewMemoryStore returns a store holding r.
func NewMemoryStore(r Record) *MemoryStore {
	return &MemoryStore{rec: r}
}

func (m *MemoryStore) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec, nil
}

func (m *MemoryStore) Save(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.rec = r
	m.Saves++
	return nil
}

package store

import "sync"

// MemoryStore is an in-memory Store used in tests and for ephemeral sessions.
// Values survive for the life of the instance only.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	failed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns the value for key, or false if the key is absent.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failed {
		return nil, false, errStoreUnavailable
	}
	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, true, nil
}

// Set stores the value under key.
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errStoreUnavailable
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

// Delete removes the key.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errStoreUnavailable
	}
	delete(s.data, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// SetUnavailable toggles a simulated store failure. Test hook only.
func (s *MemoryStore) SetUnavailable(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = failed
}

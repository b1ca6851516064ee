package credstore

import (
	"sync"

	"github.com/muurk/zubwifi/internal/station"
)

// Memory is an in-process backing map shared by MemoryStores of different
// namespaces.
type Memory struct {
	mu   sync.Mutex
	data map[string]station.Credential
}

// NewMemory returns an empty backing map.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]station.Credential)}
}

// Store returns the store for namespace.
func (m *Memory) Store(namespace string) (*MemoryStore, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	return &MemoryStore{mem: m, namespace: namespace}, nil
}

// MemoryStore is a namespace of a Memory.
type MemoryStore struct {
	mem       *Memory
	namespace string
}

// NewMemoryStore returns a store in DefaultNamespace of its own Memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mem: NewMemory(), namespace: DefaultNamespace}
}

func (s *MemoryStore) Save(cred station.Credential) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	s.mem.data[s.namespace] = cred
	return nil
}

func (s *MemoryStore) Load() (station.Credential, bool, error) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	cred, ok := s.mem.data[s.namespace]
	return cred, ok, nil
}

func (s *MemoryStore) Clear() error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	delete(s.mem.data, s.namespace)
	return nil
}

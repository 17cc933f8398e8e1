package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
)

// MemoryStore keeps collections in process memory. Nothing survives a
// restart.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string][]engine.Participant
	codes map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]engine.Participant),
		codes: make(map[string]bool),
	}
}

func (m *MemoryStore) Create(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = true
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[code], nil
}

func (m *MemoryStore) Load(_ context.Context, code string, coll Collection) ([]engine.Participant, error) {
	if !coll.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, coll)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data[key(code, coll)]), nil
}

func (m *MemoryStore) Save(_ context.Context, code string, coll Collection, ps []engine.Participant) error {
	if !coll.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, coll)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = true
	m.data[key(code, coll)] = slices.Clone(ps)
	return nil
}

func key(code string, coll Collection) string {
	return code + "/" + string(coll)
}

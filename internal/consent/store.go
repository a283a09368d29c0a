package consent

import (
	"context"
	"sync"
	"time"
)

// Store persists grants per visitor.
type Store interface {
	// Load returns the visitor's granted categories. An unknown visitor has
	// none and is not an error.
	Load(ctx context.Context, visitorID string) (map[Category]bool, error)
	// Grant records c as granted. Granting twice is a no-op.
	Grant(ctx context.Context, visitorID string, c Category, at time.Time) error
}

// MemoryStore keeps grants in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	grants map[string]map[Category]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]map[Category]time.Time)}
}

func (m *MemoryStore) Load(ctx context.Context, visitorID string) (map[Category]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Category]bool, len(m.grants[visitorID]))
	for c := range m.grants[visitorID] {
		out[c] = true
	}
	return out, nil
}

func (m *MemoryStore) Grant(ctx context.Context, visitorID string, c Category, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.grants[visitorID]
	if v == nil {
		v = make(map[Category]time.Time)
		m.grants[visitorID] = v
	}
	if _, ok := v[c]; !ok {
		v[c] = at
	}
	return nil
}

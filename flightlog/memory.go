package flightlog

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore хранит записи в памяти
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, r := range m.records {
		if r.ID == rec.ID {
			return fmt.Errorf("%w: %s", ErrConflict, rec.ID)
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Record, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

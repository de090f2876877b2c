package registry

import (
	"context"
	"sync"

	"github.com/simpleatm/atm/internal/account"
)

// Memory is an in-memory Store for tests. Saves counts successful rewrites.
type Memory struct {
	mu      sync.Mutex
	records []account.Record
	Saves   int
	Err     error
}

// NewMemory returns a Memory store seeded with records.
func NewMemory(records ...account.Record) *Memory {
	return &Memory{records: append([]account.Record(nil), records...)}
}

func (m *Memory) Load(_ context.Context) ([]account.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]account.Record(nil), m.records...), nil
}

func (m *Memory) Save(_ context.Context, records []account.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.records = append([]account.Record(nil), records...)
	m.Saves++
	return nil
}

// Records returns the last saved registry.
func (m *Memory) Records() []account.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]account.Record(nil), m.records...)
}

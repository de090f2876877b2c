package journal

import (
	"context"
	"sync"

	"github.com/simpleatm/atm/internal/account"
)

type memoryJournal struct {
	mu      sync.RWMutex
	entries map[string][]account.Entry
}

// NewMemory builds an in-memory journal for tests.
func NewMemory() account.Journal {
	return &memoryJournal{entries: make(map[string][]account.Entry)}
}

func (j *memoryJournal) Append(_ context.Context, username string, entry account.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[username] = append(j.entries[username], entry)
	return nil
}

func (j *memoryJournal) Entries(_ context.Context, username string) ([]account.Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]account.Entry, len(j.entries[username]))
	copy(out, j.entries[username])
	return out, nil
}

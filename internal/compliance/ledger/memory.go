// Package ledger holds the transaction ledger implementations: in-memory,
// Redis sorted sets and PostgreSQL.
package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"rwagate/internal/compliance/models"
	"rwagate/pkg/domain"
)

// Memory keeps each user's entries ordered by occurrence time. Single
// process only.
type Memory struct {
	mu      sync.RWMutex
	entries map[domain.UserID][]models.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[domain.UserID][]models.LedgerEntry)}
}

func (m *Memory) Append(_ context.Context, entry models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.entries[entry.UserID]
	// Entries arrive in time order almost always; keep the slice sorted for
	// the window scan when they do not.
	i := len(log)
	for i > 0 && log[i-1].OccurredAt.After(entry.OccurredAt) {
		i--
	}
	m.entries[entry.UserID] = slices.Insert(log, i, entry)
	return nil
}

func (m *Memory) SumSince(_ context.Context, userID domain.UserID, since time.Time) (domain.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.entries[userID]
	start, _ := slices.BinarySearchFunc(log, since, func(e models.LedgerEntry, t time.Time) int {
		return e.OccurredAt.Compare(t)
	})
	var total domain.Amount
	for _, e := range log[start:] {
		total += e.Amount
	}
	return total, nil
}

func (m *Memory) History(_ context.Context, userID domain.UserID) ([]models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries[userID]), nil
}

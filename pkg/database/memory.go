package database

import (
	"context"
	"sync"

	"retail-analytics/pkg/models"
)

// MemoryStore keeps lines in a slice. Used by tests and memory:// runs.
type MemoryStore struct {
	mu    sync.RWMutex
	lines []models.TransactionLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context, lines []models.TransactionLine) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
	return len(lines), nil
}

func (s *MemoryStore) Scan(ctx context.Context, f Filter) ([]models.TransactionLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TransactionLine
	for _, l := range s.lines {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.lines)), nil
}

func (s *MemoryStore) Close() error { return nil }

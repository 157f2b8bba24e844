package ledger

import (
	"context"
	"errors"
	"sync"

	"refinery/internal/model"
)

// MemoryLedger is the default backend for tests and throwaway runs. It keeps
// the same ordering semantics as the sqlite backend: insertion order is
// authoritative, ties on affinity go to the most recent record.
type MemoryLedger struct {
	mu          sync.RWMutex
	initialized bool
	records     []model.Candidate
	ids         map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Init(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.initialized = true
	l.records = nil
	l.ids = make(map[string]struct{})
	return nil
}

func (l *MemoryLedger) Record(_ context.Context, candidate model.Candidate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return errors.New("ledger is not initialized")
	}
	if candidate.ID == "" {
		return errors.New("candidate id is required")
	}
	if _, exists := l.ids[candidate.ID]; exists {
		return errors.New("duplicate candidate id: " + candidate.ID)
	}
	l.ids[candidate.ID] = struct{}{}
	l.records = append(l.records, Stamp(candidate))
	return nil
}

func (l *MemoryLedger) Recent(_ context.Context, limit int) ([]model.Candidate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.initialized {
		return nil, errors.New("ledger is not initialized")
	}
	if limit <= 0 || limit > len(l.records) {
		limit = len(l.records)
	}
	out := make([]model.Candidate, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

func (l *MemoryLedger) Best(_ context.Context) (model.Candidate, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.initialized {
		return model.Candidate{}, false, errors.New("ledger is not initialized")
	}
	found := false
	var best model.Candidate
	for _, candidate := range l.records {
		if !found || candidate.Affinity <= best.Affinity {
			best = candidate
			found = true
		}
	}
	return best, found, nil
}

func (l *MemoryLedger) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.initialized {
		return 0, errors.New("ledger is not initialized")
	}
	return len(l.records), nil
}

func (l *MemoryLedger) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return errors.New("ledger is not initialized")
	}
	l.records = nil
	l.ids = make(map[string]struct{})
	return nil
}

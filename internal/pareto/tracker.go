package pareto

import (
	"sync"

	"refinery/internal/model"
)

// DefaultCapacity bounds the tracked window.
const DefaultCapacity = 200

// Tracker keeps a bounded, recency-windowed set of candidates along the
// affinity/stability plane. Every scored candidate is appended; once the
// capacity is exceeded the oldest entry is evicted. This is a visualization
// window, not a strict non-dominated front; NonDominated derives that view
// on demand.
type Tracker struct {
	mu       sync.RWMutex
	capacity int
	window   []model.Candidate
}

func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{capacity: capacity}
}

// Add appends the candidate and evicts the single oldest entry when the
// window exceeds capacity.
func (t *Tracker) Add(candidate model.Candidate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.window = append(t.window, candidate)
	if len(t.window) > t.capacity {
		t.window = t.window[1:]
	}
}

// Snapshot returns the full current set, oldest first.
func (t *Tracker) Snapshot() []model.Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.Candidate, len(t.window))
	copy(out, t.window)
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.window)
}

// Clear drops the window. Called when the search is re-seeded from a new
// founder.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = nil
}

// NonDominated filters candidates down to the strict Pareto front: a
// candidate survives only if no other has affinity and stability both at
// least as low, with one strictly lower. Ordering of survivors follows the
// input.
func NonDominated(candidates []model.Candidate) []model.Candidate {
	out := make([]model.Candidate, 0, len(candidates))
	for i, a := range candidates {
		dominated := false
		for j, b := range candidates {
			if i == j {
				continue
			}
			if b.Affinity <= a.Affinity && b.Stability <= a.Stability &&
				(b.Affinity < a.Affinity || b.Stability < a.Stability) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, a)
		}
	}
	return out
}

package novelty

import (
	"sync"

	"refinery/internal/model"
)

// Filter deduplicates sequences by exact string match over the lifetime of the
// instance. The set grows without bound; sequences are short and runs are
// finite, so this is acceptable for a single refinement session.
type Filter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewFilter() *Filter {
	return &Filter{seen: make(map[string]struct{})}
}

// Check reports whether the sequence is new and records it on first sight.
func (f *Filter) Check(sequence string) (bool, model.NoveltyStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[sequence]; ok {
		return false, model.NoveltyDuplicate
	}
	f.seen[sequence] = struct{}{}
	return true, model.NoveltyNovel
}

// Size returns the number of distinct sequences observed so far.
func (f *Filter) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

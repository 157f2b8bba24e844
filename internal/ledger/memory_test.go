package ledger

import (
	"context"
	"fmt"
	"testing"

	"refinery/internal/model"
)

func recordCandidates(t *testing.T, l Ledger, affinities []float64) {
	t.Helper()
	ctx := context.Background()
	for i, affinity := range affinities {
		candidate := model.Candidate{
			ID:         fmt.Sprintf("cand-%d", i+1),
			Sequence:   "MKVLAT",
			Affinity:   affinity,
			Stability:  -5.0,
			Generation: i + 1,
			Novelty:    model.NoveltyNovel,
		}
		if err := l.Record(ctx, candidate); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
}

func TestBestReturnsLowestAffinity(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	recordCandidates(t, l, []float64{-5.0, -9.2, -3.1})

	best, ok, err := l.Best(ctx)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if !ok {
		t.Fatal("expected a best candidate")
	}
	if best.Affinity != -9.2 || best.ID != "cand-2" {
		t.Fatalf("unexpected best: %+v", best)
	}
}

func TestBestBreaksTiesByRecency(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	recordCandidates(t, l, []float64{-7.0, -4.0, -7.0})

	best, ok, err := l.Best(ctx)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if !ok || best.ID != "cand-3" {
		t.Fatalf("tie should go to most recent, got: %+v", best)
	}
}

func TestBestOnEmptyLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	_, ok, err := l.Best(ctx)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if ok {
		t.Fatal("empty ledger must report no best candidate")
	}
}

func TestRecentIsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	recordCandidates(t, l, []float64{-1.0, -2.0, -3.0, -4.0})

	recent, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent length: got=%d want=2", len(recent))
	}
	if recent[0].ID != "cand-4" || recent[1].ID != "cand-3" {
		t.Fatalf("unexpected order: %s, %s", recent[0].ID, recent[1].ID)
	}
}

func TestRecordRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	candidate := model.Candidate{ID: "cand-1", Sequence: "MK", Affinity: -1}
	if err := l.Record(ctx, candidate); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, candidate); err == nil {
		t.Fatal("expected duplicate id rejection")
	}
}

func TestResetClearsAllState(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	recordCandidates(t, l, []float64{-1.0, -2.0})
	if err := l.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	count, err := l.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after reset: got=%d want=0", count)
	}
	if _, ok, _ := l.Best(ctx); ok {
		t.Fatal("best after reset should be empty")
	}
}

func TestUsableOnlyAfterInit(t *testing.T) {
	l := NewMemoryLedger()
	if err := l.Record(context.Background(), model.Candidate{ID: "x"}); err == nil {
		t.Fatal("expected error before init")
	}
}

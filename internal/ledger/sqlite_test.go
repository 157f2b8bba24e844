//go:build sqlite

package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"refinery/internal/model"
)

func TestSQLiteLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "refinery.db")

	l := NewSQLiteLedger(dbPath)
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
	})

	candidates := []model.Candidate{
		{ID: "c1", Sequence: "MKVL", ParentID: "", Affinity: -5.0, Stability: -4.5, Generation: 1, Novelty: model.NoveltyNovel},
		{ID: "c2", Sequence: "MKWL", ParentID: "c1", Affinity: -9.2, Stability: -5.0, Generation: 2, Novelty: model.NoveltyNovel},
		{ID: "c3", Sequence: "MKVL", ParentID: "c1", Affinity: -3.1, Stability: -2.0, Generation: 2, Novelty: model.NoveltyDuplicate},
	}
	for _, candidate := range candidates {
		if err := l.Record(ctx, candidate); err != nil {
			t.Fatalf("record %s: %v", candidate.ID, err)
		}
	}

	best, ok, err := l.Best(ctx)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if !ok || best.ID != "c2" || best.Affinity != -9.2 {
		t.Fatalf("unexpected best: %+v", best)
	}

	recent, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c3" || recent[1].ID != "c2" {
		t.Fatalf("unexpected recent: %+v", recent)
	}
	if recent[1].ParentID != "c1" || recent[1].Novelty != model.NoveltyNovel {
		t.Fatalf("payload fields lost: %+v", recent[1])
	}
}

func TestSQLiteLedgerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "refinery.db")

	l := NewSQLiteLedger(dbPath)
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := l.Record(ctx, model.Candidate{ID: "c1", Sequence: "MK", Affinity: -6.5, Stability: -5, Generation: 1, Novelty: model.NoveltyNovel}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewSQLiteLedger(dbPath)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})

	best, ok, err := reopened.Best(ctx)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if !ok || best.ID != "c1" {
		t.Fatalf("best not durable: %+v ok=%v", best, ok)
	}
}

func TestSQLiteLedgerRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	l := NewSQLiteLedger(filepath.Join(t.TempDir(), "refinery.db"))
	if err := l.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
	})

	candidate := model.Candidate{ID: "c1", Sequence: "MK", Affinity: -1, Stability: -1, Generation: 1}
	if err := l.Record(ctx, candidate); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, candidate); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

package design

import (
	"context"
	"strings"
	"testing"

	"refinery/internal/seq"
)

func TestGenerateProducesRequestedCount(t *testing.T) {
	d := NewPointDesigner(7)
	out, err := d.Generate(context.Background(), "MKVLATGKWE", 12, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(out) != 12 {
		t.Fatalf("count: got=%d want=12", len(out))
	}
}

func TestGenerateBoundsSubstitutions(t *testing.T) {
	parent := "MKVLATGKWEDQRNSHFCIY"
	d := NewPointDesigner(42)

	for _, intensity := range []int{1, 3, 5} {
		out, err := d.Generate(context.Background(), parent, 50, intensity)
		if err != nil {
			t.Fatalf("generate intensity=%d: %v", intensity, err)
		}
		for _, child := range out {
			if len(child) != len(parent) {
				t.Fatalf("length changed: got=%d want=%d", len(child), len(parent))
			}
			diffs := 0
			for i := range child {
				if child[i] != parent[i] {
					diffs++
				}
			}
			if diffs > intensity {
				t.Fatalf("too many substitutions: got=%d limit=%d", diffs, intensity)
			}
		}
	}
}

func TestGenerateStaysInAlphabet(t *testing.T) {
	d := NewPointDesigner(1)
	out, err := d.Generate(context.Background(), "MKVLATGKWE", 40, 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, child := range out {
		for i := 0; i < len(child); i++ {
			if !strings.ContainsRune(seq.Alphabet, rune(child[i])) {
				t.Fatalf("residue %q outside alphabet in %q", child[i], child)
			}
		}
	}
}

func TestGenerateLeavesParentUntouched(t *testing.T) {
	parent := "MKVLATGKWE"
	d := NewPointDesigner(3)
	if _, err := d.Generate(context.Background(), parent, 10, 2); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if parent != "MKVLATGKWE" {
		t.Fatalf("parent mutated: %q", parent)
	}
}

func TestGenerateRejectsBadArguments(t *testing.T) {
	d := NewPointDesigner(0)
	if _, err := d.Generate(context.Background(), "MKVL", 0, 1); err == nil {
		t.Fatal("expected error for count=0")
	}
	if _, err := d.Generate(context.Background(), "MKVL", 1, 0); err == nil {
		t.Fatal("expected error for intensity=0")
	}
	if _, err := d.Generate(context.Background(), "MK8L", 1, 1); err == nil {
		t.Fatal("expected error for off-alphabet parent")
	}
}

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	a, err := NewPointDesigner(99).Generate(context.Background(), "MKVLATGKWE", 5, 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := NewPointDesigner(99).Generate(context.Background(), "MKVLATGKWE", 5, 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded runs diverged at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

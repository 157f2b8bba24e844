package design

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"refinery/internal/seq"
)

// ErrGenerationUnavailable reports that the generative backend could not
// produce candidates. The engine skips the generation and continues.
var ErrGenerationUnavailable = errors.New("candidate generation unavailable")

// Designer produces candidate sequences derived from a parent sequence.
type Designer interface {
	Name() string
	Generate(ctx context.Context, parent string, count, intensity int) ([]string, error)
}

// PointDesigner applies exactly intensity independent residue substitutions at
// uniformly random positions. Positions may repeat, and a redraw of the
// original residue is allowed, so the net edit distance can be below intensity.
type PointDesigner struct {
	rng *rand.Rand
}

func NewPointDesigner(seed int64) *PointDesigner {
	return &PointDesigner{rng: rand.New(rand.NewSource(seed))}
}

func (d *PointDesigner) Name() string {
	return "point_substitution"
}

func (d *PointDesigner) Generate(ctx context.Context, parent string, count, intensity int) ([]string, error) {
	if err := seq.Validate(parent); err != nil {
		return nil, fmt.Errorf("parent sequence: %w", err)
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be > 0")
	}
	if intensity <= 0 {
		return nil, fmt.Errorf("intensity must be > 0")
	}

	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, d.mutate(parent, intensity))
	}
	return out, nil
}

func (d *PointDesigner) mutate(parent string, intensity int) string {
	residues := []byte(parent)
	for step := 0; step < intensity; step++ {
		pos := d.rng.Intn(len(residues))
		residues[pos] = seq.Alphabet[d.rng.Intn(len(seq.Alphabet))]
	}
	return string(residues)
}

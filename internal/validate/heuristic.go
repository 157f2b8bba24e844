package validate

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// HeuristicConfig tunes the offline scoring model. Zero values fall back to
// defaults chosen to sit near plausible binding and folding energies.
type HeuristicConfig struct {
	AffinityBaseline  float64
	AffinityNoise     float64
	StabilityBaseline float64
	StabilityNoise    float64
	LeapProbability   float64
	LeapBonus         float64
	Latency           time.Duration
	Seed              int64
}

func (c HeuristicConfig) withDefaults() HeuristicConfig {
	if c.AffinityBaseline == 0 {
		c.AffinityBaseline = -6.0
	}
	if c.AffinityNoise == 0 {
		c.AffinityNoise = 1.5
	}
	if c.StabilityBaseline == 0 {
		c.StabilityBaseline = -2.0
	}
	if c.StabilityNoise == 0 {
		c.StabilityNoise = 3.0
	}
	if c.LeapProbability == 0 {
		c.LeapProbability = 0.1
	}
	if c.LeapBonus == 0 {
		c.LeapBonus = -2.5
	}
	return c
}

// Heuristic is the offline validator: randomized but biased scores with a
// small chance of an extra negative offset standing in for an evolutionary
// leap. It has no external dependency and never fails. The optional latency
// exists only to keep a live observer's timeline legible.
type Heuristic struct {
	cfg HeuristicConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewHeuristic(cfg HeuristicConfig) *Heuristic {
	cfg = cfg.withDefaults()
	return &Heuristic{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (h *Heuristic) Name() string {
	return "heuristic"
}

func (h *Heuristic) Validate(ctx context.Context, _, _, _ string) (Result, error) {
	if h.cfg.Latency > 0 {
		timer := time.NewTimer(h.cfg.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	affinity := h.cfg.AffinityBaseline + h.spread(h.cfg.AffinityNoise)
	stability := h.cfg.StabilityBaseline + h.spread(h.cfg.StabilityNoise)
	if h.rng.Float64() < h.cfg.LeapProbability {
		affinity += h.cfg.LeapBonus
	}
	return Result{Affinity: affinity, Stability: stability}, nil
}

func (h *Heuristic) spread(noise float64) float64 {
	return (h.rng.Float64()*2 - 1) * noise
}

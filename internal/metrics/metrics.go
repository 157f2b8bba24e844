package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects loop activity counters on a dedicated registry so the
// server can expose them without touching the global default.
type Metrics struct {
	Registry *prometheus.Registry

	GenerationsTotal   prometheus.Counter
	CandidatesTotal    prometheus.Counter
	DuplicatesTotal    prometheus.Counter
	LeapsTotal         prometheus.Counter
	PenaltiesTotal     prometheus.Counter
	SkippedGenerations prometheus.Counter
	Running            prometheus.Gauge
	BestAffinity       prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		Registry: registry,
		GenerationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refinery_generations_total",
			Help: "Loop iterations completed.",
		}),
		CandidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refinery_candidates_total",
			Help: "Candidates evaluated and recorded.",
		}),
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refinery_duplicate_candidates_total",
			Help: "Candidates whose sequence had been seen before.",
		}),
		LeapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refinery_evolution_leaps_total",
			Help: "Accepted parent improvements.",
		}),
		PenaltiesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refinery_penalty_results_total",
			Help: "Evaluations that failed and received the penalty score.",
		}),
		SkippedGenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refinery_skipped_generations_total",
			Help: "Generations skipped because the designer was unavailable.",
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "refinery_run_active",
			Help: "1 while a refinement run is active.",
		}),
		BestAffinity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "refinery_best_affinity",
			Help: "Lowest affinity recorded so far in the active run.",
		}),
	}
	registry.MustRegister(
		m.GenerationsTotal,
		m.CandidatesTotal,
		m.DuplicatesTotal,
		m.LeapsTotal,
		m.PenaltiesTotal,
		m.SkippedGenerations,
		m.Running,
		m.BestAffinity,
	)
	return m
}

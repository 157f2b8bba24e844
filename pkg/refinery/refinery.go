// Package refinery is the embeddable entry point: it wires the designer,
// validator, ledger, and engine together from a single options struct and
// offers a bounded synchronous run for callers that do not want to manage the
// loop themselves.
package refinery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"refinery/internal/design"
	"refinery/internal/engine"
	"refinery/internal/ledger"
	"refinery/internal/metrics"
	"refinery/internal/model"
	"refinery/internal/novelty"
	"refinery/internal/pareto"
	"refinery/internal/validate"
)

// Validation modes.
const (
	ModeHeuristic = "heuristic"
	ModeTools     = "tools"
)

type Options struct {
	// StoreKind selects the ledger backend: "memory" or "sqlite".
	StoreKind string
	// DBPath is the sqlite database file, ignored for the memory backend.
	DBPath string

	// Mode selects the validator: ModeHeuristic or ModeTools.
	Mode         string
	StructureBin string
	DockingBin   string
	LigandPath   string
	WorkDir      string

	CandidatesPerGeneration int
	GenerationPause         time.Duration
	Seed                    int64
	Logger                  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.StoreKind == "" {
		o.StoreKind = ledger.DefaultKind()
	}
	if o.DBPath == "" {
		o.DBPath = "refinery.db"
	}
	if o.Mode == "" {
		o.Mode = ModeHeuristic
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client owns a wired engine and its ledger.
type Client struct {
	engine *engine.Engine
	store  ledger.Ledger
	log    *slog.Logger
}

func Open(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	store, err := ledger.New(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	var validator validate.Validator
	switch opts.Mode {
	case ModeHeuristic:
		validator = validate.NewHeuristic(validate.HeuristicConfig{Seed: opts.Seed})
	case ModeTools:
		validator = validate.NewToolChain(validate.ToolChainConfig{
			StructureBin: opts.StructureBin,
			DockingBin:   opts.DockingBin,
			LigandPath:   opts.LigandPath,
			WorkDir:      opts.WorkDir,
			Logger:       opts.Logger,
		})
	default:
		_ = ledger.CloseIfSupported(store)
		return nil, fmt.Errorf("unknown validation mode %q", opts.Mode)
	}

	e, err := engine.New(engine.Config{
		Designer:                design.NewPointDesigner(opts.Seed),
		Validator:               validator,
		Novelty:                 novelty.NewFilter(),
		Ledger:                  store,
		Tracker:                 pareto.NewTracker(pareto.DefaultCapacity),
		Metrics:                 metrics.New(),
		CandidatesPerGeneration: opts.CandidatesPerGeneration,
		GenerationPause:         opts.GenerationPause,
		Logger:                  opts.Logger,
	})
	if err != nil {
		_ = ledger.CloseIfSupported(store)
		return nil, err
	}

	return &Client{engine: e, store: store, log: opts.Logger}, nil
}

// Engine exposes the underlying controller for callers that drive the loop
// asynchronously or serve it over HTTP.
func (c *Client) Engine() *engine.Engine { return c.engine }

// Ledger exposes the candidate store for queries.
func (c *Client) Ledger() ledger.Ledger { return c.store }

// Run seeds the loop with the given protein and blocks until the generation
// limit is reached, the run aborts, or ctx expires.
func (c *Client) Run(ctx context.Context, sequence, structureRef string, generations int) (model.RunSummary, error) {
	founder, err := c.engine.SetInitialProtein(ctx, sequence, structureRef)
	if err != nil {
		return model.RunSummary{}, err
	}
	if err := c.engine.Start(generations); err != nil {
		return model.RunSummary{}, err
	}
	if err := c.engine.Wait(ctx); err != nil {
		c.engine.Stop()
		return model.RunSummary{}, err
	}

	reports, leaps := c.engine.Reports()
	summary := model.RunSummary{
		RunID:       c.engine.Status().RunID,
		Founder:     founder,
		Generations: reports,
		Leaps:       leaps,
	}
	if best, ok, err := c.store.Best(ctx); err == nil && ok {
		summary.Best = best
	}
	return summary, nil
}

func (c *Client) Close() error {
	c.engine.Stop()
	return ledger.CloseIfSupported(c.store)
}

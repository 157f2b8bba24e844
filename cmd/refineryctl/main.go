package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"refinery/internal/ledger"
	"refinery/internal/model"
	"refinery/internal/server"
	refapi "refinery/pkg/refinery"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "recent":
		return runRecent(ctx, args[1:])
	case "pareto":
		return runPareto(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: refineryctl <init|reset|run|serve|seed|best|recent|pareto> [flags]", msg)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", ledger.DefaultKind(), "ledger backend: memory|sqlite (sqlite needs a -tags sqlite build)")
	dbPath := fs.String("db-path", "refinery.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := ledger.New(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ledger.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", ledger.DefaultKind(), "ledger backend: memory|sqlite (sqlite needs a -tags sqlite build)")
	dbPath := fs.String("db-path", "refinery.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := ledger.New(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ledger.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}
	if err := store.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	sequence := fs.String("sequence", "", "founding protein sequence")
	structurePath := fs.String("structure", "", "reference structure PDB path")
	generations := fs.Int("gens", 10, "generation count")
	candidates := fs.Int("candidates", 0, "candidates per generation (0 uses default)")
	seed := fs.Int64("seed", 1, "rng seed")
	mode := fs.String("mode", refapi.ModeHeuristic, "validation mode: heuristic|tools")
	pauseMS := fs.Int("pause-ms", 0, "pause between generations in milliseconds")
	storeKind := fs.String("store", ledger.DefaultKind(), "ledger backend: memory|sqlite (sqlite needs a -tags sqlite build)")
	dbPath := fs.String("db-path", "refinery.db", "sqlite database path")
	structureBin := fs.String("structure-bin", "", "structure modeling binary (tools mode)")
	dockingBin := fs.String("docking-bin", "", "docking binary (tools mode)")
	ligandPath := fs.String("ligand", "", "ligand PDBQT path (tools mode)")
	workDir := fs.String("work-dir", "", "scratch directory for tool runs")
	verbose := fs.Bool("verbose", false, "debug logging")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := loadOrDefaultRunConfig(*configPath)
	if err != nil {
		return err
	}
	overrideFromFlags(&cfg, setFlags, map[string]any{
		"sequence":      *sequence,
		"structure":     *structurePath,
		"gens":          *generations,
		"candidates":    *candidates,
		"seed":          *seed,
		"mode":          *mode,
		"pause-ms":      *pauseMS,
		"store":         *storeKind,
		"db-path":       *dbPath,
		"structure-bin": *structureBin,
		"docking-bin":   *dockingBin,
		"ligand":        *ligandPath,
		"work-dir":      *workDir,
	})
	if cfg.Sequence == "" {
		return errors.New("run requires --sequence or a config with one")
	}
	if cfg.Generations <= 0 {
		cfg.Generations = 10
	}

	client, err := refapi.Open(ctx, refapi.Options{
		StoreKind:               cfg.Store,
		DBPath:                  cfg.DBPath,
		Mode:                    cfg.Mode,
		StructureBin:            cfg.StructureBin,
		DockingBin:              cfg.DockingBin,
		LigandPath:              cfg.LigandPath,
		WorkDir:                 cfg.WorkDir,
		CandidatesPerGeneration: cfg.Candidates,
		GenerationPause:         time.Duration(cfg.PauseMS) * time.Millisecond,
		Seed:                    cfg.Seed,
		Logger:                  newLogger(*verbose),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, cfg.Sequence, cfg.StructurePath, cfg.Generations)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("run completed run_id=%s gens=%d leaps=%d seed=%d\n",
		summary.RunID, len(summary.Generations), summary.Leaps, cfg.Seed)
	for _, report := range summary.Generations {
		fmt.Printf("generation=%d evaluated=%d duplicates=%d rate=%d best_affinity=%.4f accepted=%t\n",
			report.Generation,
			report.Evaluated,
			report.Duplicates,
			report.MutationRate,
			report.BestAffinity,
			report.Accepted,
		)
	}
	fmt.Printf("best id=%s affinity=%.4f stability=%.4f sequence=%s\n",
		summary.Best.ID, summary.Best.Affinity, summary.Best.Stability, summary.Best.Sequence)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	candidates := fs.Int("candidates", 0, "candidates per generation (0 uses default)")
	seed := fs.Int64("seed", 1, "rng seed")
	mode := fs.String("mode", refapi.ModeHeuristic, "validation mode: heuristic|tools")
	pauseMS := fs.Int("pause-ms", 1000, "pause between generations in milliseconds")
	storeKind := fs.String("store", ledger.DefaultKind(), "ledger backend: memory|sqlite (sqlite needs a -tags sqlite build)")
	dbPath := fs.String("db-path", "refinery.db", "sqlite database path")
	structureBin := fs.String("structure-bin", "", "structure modeling binary (tools mode)")
	dockingBin := fs.String("docking-bin", "", "docking binary (tools mode)")
	ligandPath := fs.String("ligand", "", "ligand PDBQT path (tools mode)")
	workDir := fs.String("work-dir", "", "scratch directory for tool runs")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := newLogger(*verbose)
	client, err := refapi.Open(ctx, refapi.Options{
		StoreKind:               *storeKind,
		DBPath:                  *dbPath,
		Mode:                    *mode,
		StructureBin:            *structureBin,
		DockingBin:              *dockingBin,
		LigandPath:              *ligandPath,
		WorkDir:                 *workDir,
		CandidatesPerGeneration: *candidates,
		GenerationPause:         time.Duration(*pauseMS) * time.Millisecond,
		Seed:                    *seed,
		Logger:                  log,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	srv := &http.Server{
		Addr:    *addr,
		Handler: server.New(client.Engine(), client.Ledger(), log).Router(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runSeed posts a founder to a running serve instance.
func runSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "base URL of a running serve instance")
	sequence := fs.String("sequence", "", "founding protein sequence")
	structurePath := fs.String("structure", "", "reference structure PDB path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sequence == "" {
		return errors.New("seed requires --sequence")
	}

	body, err := json.Marshal(map[string]string{
		"sequence":       *sequence,
		"structure_path": *structurePath,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *addr+"/api/v1/protein", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("seed rejected: %s: %s", resp.Status, string(raw))
	}

	var founder model.Candidate
	if err := json.NewDecoder(resp.Body).Decode(&founder); err != nil {
		return err
	}
	fmt.Printf("seeded id=%s affinity=%.4f stability=%.4f\n", founder.ID, founder.Affinity, founder.Stability)
	return nil
}

// runPareto fetches the frontier window from a running serve instance.
func runPareto(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pareto", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "base URL of a running serve instance")
	front := fs.Bool("front", false, "apply the dominance filter")
	jsonOut := fs.Bool("json", false, "emit candidates as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	url := *addr + "/api/v1/pareto"
	if *front {
		url += "?front=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pareto query failed: %s", resp.Status)
	}

	var window []model.Candidate
	if err := json.NewDecoder(resp.Body).Decode(&window); err != nil {
		return err
	}
	if len(window) == 0 {
		fmt.Println("frontier is empty")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(window)
	}
	for _, c := range window {
		fmt.Printf("id=%s generation=%d affinity=%.4f stability=%.4f\n",
			c.ID, c.Generation, c.Affinity, c.Stability)
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	storeKind := fs.String("store", ledger.DefaultKind(), "ledger backend: memory|sqlite (sqlite needs a -tags sqlite build)")
	dbPath := fs.String("db-path", "refinery.db", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit candidate as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := ledger.New(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ledger.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	best, ok, err := store.Best(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no candidates recorded")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(best)
	}
	fmt.Printf("id=%s generation=%d affinity=%.4f stability=%.4f novelty=%s sequence=%s\n",
		best.ID, best.Generation, best.Affinity, best.Stability, best.Novelty, best.Sequence)
	return nil
}

func runRecent(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recent", flag.ContinueOnError)
	storeKind := fs.String("store", ledger.DefaultKind(), "ledger backend: memory|sqlite (sqlite needs a -tags sqlite build)")
	dbPath := fs.String("db-path", "refinery.db", "sqlite database path")
	limit := fs.Int("limit", 20, "max candidates to list")
	jsonOut := fs.Bool("json", false, "emit candidates as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	store, err := ledger.New(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ledger.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	recent, err := store.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("no candidates recorded")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recent)
	}
	for _, c := range recent {
		fmt.Printf("id=%s generation=%d parent=%s affinity=%.4f stability=%.4f novelty=%s\n",
			c.ID, c.Generation, c.ParentID, c.Affinity, c.Stability, c.Novelty)
	}
	return nil
}

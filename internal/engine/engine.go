// Package engine drives the generate-evaluate-select refinement loop. It owns
// the current parent, the stagnation counter, and the mutation-rate schedule,
// and publishes lifecycle events for observers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"refinery/internal/design"
	"refinery/internal/events"
	"refinery/internal/ledger"
	"refinery/internal/metrics"
	"refinery/internal/model"
	"refinery/internal/novelty"
	"refinery/internal/pareto"
	"refinery/internal/seq"
	"refinery/internal/validate"
)

const (
	StagnationThreshold    = 3
	BaseMutationRate       = 1
	AggressiveMutationRate = 3
	StabilityGate          = -4.0

	DefaultCandidatesPerGeneration = 5
	DefaultGenerationPause         = time.Second
)

// State of the refinement controller.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

var (
	ErrNoFounder  = errors.New("no founder candidate; call SetInitialProtein first")
	ErrRunActive  = errors.New("a run is active")
	ErrSeedActive = errors.New("a reseed is in progress")
)

type Config struct {
	Designer  design.Designer
	Validator validate.Validator
	Novelty   *novelty.Filter
	Ledger    ledger.Ledger
	Tracker   *pareto.Tracker
	Bus       *events.Bus
	Metrics   *metrics.Metrics

	CandidatesPerGeneration int
	GenerationPause         time.Duration
	Logger                  *slog.Logger
}

// Status is a read-only view of the controller for the query surface.
type Status struct {
	State           State           `json:"state"`
	RunID           string          `json:"run_id,omitempty"`
	Generation      int             `json:"generation"`
	GenerationLimit int             `json:"generation_limit"`
	Stagnation      int             `json:"stagnation"`
	Parent          model.Candidate `json:"parent"`
	HasParent       bool            `json:"has_parent"`
}

type Engine struct {
	cfg Config
	log *slog.Logger

	mu           sync.Mutex
	state        State
	seeding      bool
	parent       model.Candidate
	hasParent    bool
	structureRef string
	generation   int
	limit        int
	stagnation   int
	runID        string
	stop         chan struct{}
	stopped      bool
	done         chan struct{}
	reports      []model.GenerationReport
	leaps        int
}

func New(cfg Config) (*Engine, error) {
	if cfg.Designer == nil {
		return nil, fmt.Errorf("designer is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if cfg.Novelty == nil {
		return nil, fmt.Errorf("novelty filter is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.Tracker == nil {
		cfg.Tracker = pareto.NewTracker(pareto.DefaultCapacity)
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus(cfg.Logger)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.CandidatesPerGeneration <= 0 {
		cfg.CandidatesPerGeneration = DefaultCandidatesPerGeneration
	}
	if cfg.GenerationPause < 0 {
		cfg.GenerationPause = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		cfg:   cfg,
		log:   cfg.Logger,
		state: StateIdle,
	}, nil
}

func (e *Engine) Bus() *events.Bus          { return e.cfg.Bus }
func (e *Engine) Tracker() *pareto.Tracker  { return e.cfg.Tracker }
func (e *Engine) Metrics() *metrics.Metrics { return e.cfg.Metrics }

// SetInitialProtein evaluates a caller-supplied sequence/structure pair and
// restarts the search from it as the new founder. The ledger keeps prior
// history; the pareto window and stagnation counter are cleared.
//
// The seeding flag holds off Start for the whole founder evaluation, which
// can take minutes in tools mode.
func (e *Engine) SetInitialProtein(ctx context.Context, sequence, structureRef string) (model.Candidate, error) {
	if err := seq.Validate(sequence); err != nil {
		return model.Candidate{}, err
	}

	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return model.Candidate{}, ErrRunActive
	}
	if e.seeding {
		e.mu.Unlock()
		return model.Candidate{}, ErrSeedActive
	}
	e.seeding = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.seeding = false
		e.mu.Unlock()
	}()

	id := newCandidateID()
	_, noveltyStatus := e.cfg.Novelty.Check(sequence)
	result, err := e.cfg.Validator.Validate(ctx, sequence, structureRef, id)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("evaluate founder: %w", err)
	}

	founder := model.Candidate{
		ID:            id,
		Sequence:      sequence,
		ParentID:      "",
		Affinity:      result.Affinity,
		Stability:     result.Stability,
		Generation:    0,
		Novelty:       noveltyStatus,
		StructurePath: result.StructurePath,
	}
	if err := e.cfg.Ledger.Record(ctx, founder); err != nil {
		return model.Candidate{}, fmt.Errorf("record founder: %w", err)
	}

	e.mu.Lock()
	e.parent = founder
	e.hasParent = true
	e.structureRef = structureRef
	if founder.StructurePath != "" {
		e.structureRef = founder.StructurePath
	}
	e.stagnation = 0
	e.generation = 0
	e.reports = nil
	e.leaps = 0
	e.mu.Unlock()

	e.cfg.Tracker.Clear()
	e.cfg.Tracker.Add(founder)
	e.cfg.Bus.Publish(events.TopicNewCandidate, founder)
	e.cfg.Bus.Publish(events.TopicParetoUpdate, e.cfg.Tracker.Snapshot())
	e.cfg.Bus.Log("info", fmt.Sprintf("founder %s set: affinity=%.2f stability=%.2f", id, founder.Affinity, founder.Stability))
	e.cfg.Metrics.BestAffinity.Set(founder.Affinity)
	return founder, nil
}

// Start launches the loop for at most generationLimit generations. Starting
// while a run is active is a no-op with a warning.
func (e *Engine) Start(generationLimit int) error {
	if generationLimit <= 0 {
		return fmt.Errorf("generation limit must be > 0")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		e.log.Warn("start requested while a run is active; ignoring")
		e.cfg.Bus.Publish(events.TopicLog, events.LogPayload{Message: "run already active", Level: "warn"})
		return nil
	}
	if e.seeding {
		return ErrSeedActive
	}
	if !e.hasParent {
		return ErrNoFounder
	}

	e.state = StateRunning
	e.runID = uuid.NewString()
	e.limit = generationLimit
	e.generation = 0
	e.reports = nil
	e.leaps = 0
	e.stop = make(chan struct{})
	e.stopped = false
	e.done = make(chan struct{})
	e.cfg.Metrics.Running.Set(1)

	e.cfg.Bus.Log("info", fmt.Sprintf("run %s started: %d generations", e.runID, generationLimit))
	go e.loop(e.stop, e.done, generationLimit)
	return nil
}

// Stop requests a cooperative stop. The request is observed at the next
// generation boundary; in-flight evaluations finish. Stopping while idle is a
// no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning || e.stopped {
		return
	}
	e.stopped = true
	close(e.stop)
	e.cfg.Bus.Log("info", "stop requested")
}

// Wait blocks until the active run finishes or ctx expires.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	running := e.state == StateRunning
	e.mu.Unlock()

	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		State:           e.state,
		RunID:           e.runID,
		Generation:      e.generation,
		GenerationLimit: e.limit,
		Stagnation:      e.stagnation,
		Parent:          e.parent,
		HasParent:       e.hasParent,
	}
}

// Reports returns the per-generation summaries of the most recent run.
func (e *Engine) Reports() ([]model.GenerationReport, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.GenerationReport, len(e.reports))
	copy(out, e.reports)
	return out, e.leaps
}

func (e *Engine) loop(stop, done chan struct{}, generationLimit int) {
	defer func() {
		e.mu.Lock()
		e.state = StateIdle
		e.mu.Unlock()
		e.cfg.Metrics.Running.Set(0)
		e.cfg.Bus.Publish(events.TopicStatus, events.StatusPayload{Text: "idle"})
		close(done)
	}()

	for g := 1; g <= generationLimit; g++ {
		select {
		case <-stop:
			e.cfg.Bus.Log("info", fmt.Sprintf("run stopped at generation %d", g-1))
			return
		default:
		}

		if err := e.runGeneration(g, generationLimit); err != nil {
			e.cfg.Bus.Log("error", fmt.Sprintf("generation %d aborted run: %v", g, err))
			return
		}

		if e.cfg.GenerationPause > 0 && g < generationLimit {
			select {
			case <-stop:
			case <-time.After(e.cfg.GenerationPause):
			}
		}
	}
	e.cfg.Bus.Log("info", "generation limit reached")
}

func (e *Engine) runGeneration(g, total int) error {
	ctx := context.Background()

	e.mu.Lock()
	e.generation = g
	intensity := BaseMutationRate
	if e.stagnation >= StagnationThreshold {
		intensity = AggressiveMutationRate
		e.stagnation = 0
	}
	parent := e.parent
	structureRef := e.structureRef
	e.mu.Unlock()

	if intensity == AggressiveMutationRate {
		e.cfg.Bus.Log("warn", fmt.Sprintf("generation %d: stagnation escalation, mutation rate %d", g, intensity))
	}

	e.cfg.Bus.Publish(events.TopicStatus, events.StatusPayload{Text: "designing", Generation: g, Total: total})
	sequences, err := e.cfg.Designer.Generate(ctx, parent.Sequence, e.cfg.CandidatesPerGeneration, intensity)
	if err != nil {
		e.cfg.Bus.Log("warn", fmt.Sprintf("generation %d: designer unavailable, skipping: %v", g, err))
		e.cfg.Metrics.SkippedGenerations.Inc()
		e.mu.Lock()
		e.stagnation++
		e.mu.Unlock()
		return nil
	}

	e.cfg.Bus.Publish(events.TopicStatus, events.StatusPayload{Text: "evaluating", Generation: g, Total: total})

	duplicates := 0
	candidates := make([]model.Candidate, 0, len(sequences))
	for _, sequence := range sequences {
		id := newCandidateID()
		_, noveltyStatus := e.cfg.Novelty.Check(sequence)
		if noveltyStatus == model.NoveltyDuplicate {
			duplicates++
			e.cfg.Metrics.DuplicatesTotal.Inc()
		}

		result, verr := e.cfg.Validator.Validate(ctx, sequence, structureRef, id)
		if verr != nil {
			// validators are total by contract; treat a stray error as a fault
			e.log.Error("validator returned an error; assigning penalty",
				"candidate", id, "generation", g, "stage", "evaluate", "error", verr)
			result = validate.PenaltyResult()
		}
		if result == validate.PenaltyResult() {
			e.cfg.Metrics.PenaltiesTotal.Inc()
		}

		candidates = append(candidates, model.Candidate{
			ID:            id,
			Sequence:      sequence,
			ParentID:      parent.ID,
			Affinity:      result.Affinity,
			Stability:     result.Stability,
			Generation:    g,
			Novelty:       noveltyStatus,
			StructurePath: result.StructurePath,
		})
	}

	e.cfg.Bus.Publish(events.TopicStatus, events.StatusPayload{Text: "recording", Generation: g, Total: total})
	for _, candidate := range candidates {
		if err := e.cfg.Ledger.Record(ctx, candidate); err != nil {
			return fmt.Errorf("record candidate %s: %w", candidate.ID, err)
		}
		e.cfg.Metrics.CandidatesTotal.Inc()
		e.cfg.Bus.Publish(events.TopicNewCandidate, candidate)
		e.cfg.Tracker.Add(candidate)
		e.cfg.Bus.Publish(events.TopicParetoUpdate, e.cfg.Tracker.Snapshot())
	}

	best, hasBest := generationBest(candidates)

	accepted := false
	e.mu.Lock()
	if hasBest && best.Affinity < e.parent.Affinity {
		e.parent = best
		if best.StructurePath != "" {
			e.structureRef = best.StructurePath
		}
		e.stagnation = 0
		e.leaps++
		accepted = true
	} else {
		e.stagnation++
	}
	report := model.GenerationReport{
		Generation:   g,
		Evaluated:    len(candidates),
		Duplicates:   duplicates,
		Accepted:     accepted,
		MutationRate: intensity,
	}
	if hasBest {
		report.BestAffinity = best.Affinity
	}
	e.reports = append(e.reports, report)
	e.mu.Unlock()

	if accepted {
		e.cfg.Metrics.LeapsTotal.Inc()
		e.cfg.Metrics.BestAffinity.Set(best.Affinity)
		e.cfg.Bus.Publish(events.TopicLeap, best)
		e.cfg.Bus.Log("info", fmt.Sprintf("generation %d: new parent %s affinity=%.2f", g, best.ID, best.Affinity))
	}

	e.cfg.Metrics.GenerationsTotal.Inc()
	return nil
}

// generationBest picks the candidate with the lowest affinity subject to the
// stability gate, excluding the zero-affinity sentinel. Ties go to evaluation
// order.
func generationBest(candidates []model.Candidate) (model.Candidate, bool) {
	var best model.Candidate
	found := false
	for _, candidate := range candidates {
		if candidate.Affinity == validate.PenaltyAffinity {
			continue
		}
		if candidate.Stability >= StabilityGate {
			continue
		}
		if !found || candidate.Affinity < best.Affinity {
			best = candidate
			found = true
		}
	}
	return best, found
}

func newCandidateID() string {
	return gonanoid.Must(12)
}

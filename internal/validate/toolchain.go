package validate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"refinery/internal/pdb"
)

// ToolChainConfig wires the two external engines. StructureBin builds a mutant
// structure and emits a tab-delimited energy report; DockingBin docks it
// against the ligand and annotates its output with a RESULT remark line.
type ToolChainConfig struct {
	StructureBin   string
	DockingBin     string
	LigandPath     string
	WorkDir        string
	BoxSize        float64
	Exhaustiveness int
	Timeout        time.Duration
	Logger         *slog.Logger
}

func (c ToolChainConfig) withDefaults() ToolChainConfig {
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "refinery")
	}
	if c.BoxSize == 0 {
		c.BoxSize = 20.0
	}
	if c.Exhaustiveness == 0 {
		c.Exhaustiveness = 8
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ToolChain drives the two external command-line engines inside an isolated
// per-candidate working directory. Every fault, including timeout, is caught
// at this boundary and converted into the penalty result; Validate never
// returns a non-nil error.
type ToolChain struct {
	cfg ToolChainConfig
}

func NewToolChain(cfg ToolChainConfig) *ToolChain {
	return &ToolChain{cfg: cfg.withDefaults()}
}

func (t *ToolChain) Name() string {
	return "toolchain"
}

func (t *ToolChain) Validate(ctx context.Context, sequence, structureRef, id string) (Result, error) {
	result, err := t.run(ctx, sequence, structureRef, id)
	if err != nil {
		t.cfg.Logger.Warn("evaluation failed, assigning penalty score",
			"candidate", id, "stage", faultStage(err), "error", err)
		return PenaltyResult(), nil
	}
	return result, nil
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func faultStage(err error) string {
	if se, ok := err.(*stageError); ok {
		return se.stage
	}
	return "unknown"
}

func atStage(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

func (t *ToolChain) run(parent context.Context, sequence, structureRef, id string) (Result, error) {
	ctx, cancel := context.WithTimeout(parent, t.cfg.Timeout)
	defer cancel()

	workDir := filepath.Join(t.cfg.WorkDir, id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, atStage("workdir", err)
	}

	reference, err := os.ReadFile(structureRef)
	if err != nil {
		return Result{}, atStage("reference", err)
	}
	referencePath := filepath.Join(workDir, "reference.pdb")
	if err := os.WriteFile(referencePath, reference, 0o644); err != nil {
		return Result{}, atStage("reference", err)
	}

	mutantPath, stability, err := t.buildMutant(ctx, workDir, referencePath, sequence)
	if err != nil {
		return Result{}, err
	}

	affinity, err := t.dock(ctx, workDir, mutantPath)
	if err != nil {
		return Result{}, err
	}

	return Result{Affinity: affinity, Stability: stability, StructurePath: mutantPath}, nil
}

// buildMutant runs the structure engine and parses its energy report. The
// report is a tab-delimited file named Average_*.fxout (older releases write
// *_ST.fxout); the second column of its first data row is the total energy.
func (t *ToolChain) buildMutant(ctx context.Context, workDir, referencePath, sequence string) (string, float64, error) {
	mutantList := filepath.Join(workDir, "individual_list.txt")
	if err := os.WriteFile(mutantList, []byte(sequence+";\n"), 0o644); err != nil {
		return "", 0, atStage("structure", err)
	}

	args := []string{
		"--command=BuildModel",
		"--pdb=" + filepath.Base(referencePath),
		"--mutant-file=" + filepath.Base(mutantList),
		"--output-dir=.",
	}
	if err := t.runTool(ctx, workDir, t.cfg.StructureBin, args); err != nil {
		return "", 0, atStage("structure", err)
	}

	stability, err := parseEnergyReport(workDir)
	if err != nil {
		return "", 0, atStage("structure", err)
	}

	mutantPath, err := locateMutantStructure(workDir, referencePath)
	if err != nil {
		return "", 0, atStage("structure", err)
	}
	return mutantPath, stability, nil
}

func (t *ToolChain) dock(ctx context.Context, workDir, mutantPath string) (float64, error) {
	if t.cfg.LigandPath == "" {
		return 0, atStage("docking", fmt.Errorf("ligand path is required"))
	}
	if _, err := os.Stat(t.cfg.LigandPath); err != nil {
		return 0, atStage("docking", err)
	}

	mutant, err := os.ReadFile(mutantPath)
	if err != nil {
		return 0, atStage("docking", err)
	}
	center, err := pdb.CAlphaCenter(string(mutant))
	if err != nil {
		return 0, atStage("docking", err)
	}

	receptorPath := filepath.Join(workDir, "receptor.pdbqt")
	if err := os.WriteFile(receptorPath, []byte(pdb.ToPDBQT(string(mutant))), 0o644); err != nil {
		return 0, atStage("docking", err)
	}
	outPath := filepath.Join(workDir, "docked.pdbqt")

	args := []string{
		"--receptor", receptorPath,
		"--ligand", t.cfg.LigandPath,
		"--center_x", formatCoord(center.X),
		"--center_y", formatCoord(center.Y),
		"--center_z", formatCoord(center.Z),
		"--size_x", formatCoord(t.cfg.BoxSize),
		"--size_y", formatCoord(t.cfg.BoxSize),
		"--size_z", formatCoord(t.cfg.BoxSize),
		"--out", outPath,
		"--exhaustiveness", strconv.Itoa(t.cfg.Exhaustiveness),
	}
	if err := t.runTool(ctx, workDir, t.cfg.DockingBin, args); err != nil {
		return 0, atStage("docking", err)
	}

	affinity, err := parseDockingResult(outPath)
	if err != nil {
		return 0, atStage("docking", err)
	}
	return affinity, nil
}

// runTool launches one external engine with an explicit argument vector. The
// context deadline kills the process on expiry.
func (t *ToolChain) runTool(ctx context.Context, workDir, bin string, args []string) error {
	if bin == "" {
		return fmt.Errorf("tool binary not configured")
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = workDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s timed out: %w", filepath.Base(bin), ctxErr)
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, truncate(string(output), 200))
	}
	return nil
}

func parseEnergyReport(workDir string) (float64, error) {
	patterns := []string{"Average_*.fxout", "*_ST.fxout"}
	var reportPath string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(workDir, pattern))
		if err == nil && len(matches) > 0 {
			reportPath = matches[0]
			break
		}
	}
	if reportPath == "" {
		return 0, fmt.Errorf("energy report not found")
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			continue
		}
		return value, nil
	}
	return 0, fmt.Errorf("no data row in energy report %s", filepath.Base(reportPath))
}

func parseDockingResult(outPath string) (float64, error) {
	data, err := os.ReadFile(outPath)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		idx := strings.Index(line, "RESULT:")
		if idx < 0 {
			continue
		}
		fields := strings.Fields(line[idx+len("RESULT:"):])
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed RESULT remark: %q", strings.TrimSpace(line))
		}
		return value, nil
	}
	return 0, fmt.Errorf("no RESULT remark in %s", filepath.Base(outPath))
}

// locateMutantStructure finds the structure the engine wrote: the newest .pdb
// in the working directory other than the reference copy.
func locateMutantStructure(workDir, referencePath string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(workDir, "*.pdb"))
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, match := range matches {
		if match == referencePath {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = match
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("mutant structure not found")
	}
	return newest, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"refinery/internal/ledger"
)

// RunConfig mirrors the run subcommand flags. Numeric fields accept both JSON
// numbers and integer-typed values so hand-written configs stay forgiving.
type RunConfig struct {
	Sequence      string
	StructurePath string
	Generations   int
	Candidates    int
	Seed          int64
	Mode          string
	PauseMS       int
	Store         string
	DBPath        string
	StructureBin  string
	DockingBin    string
	LigandPath    string
	WorkDir       string
}

func defaultRunConfig() RunConfig {
	return RunConfig{
		Generations: 10,
		Seed:        1,
		Mode:        "heuristic",
		Store:       ledger.DefaultKind(),
		DBPath:      "refinery.db",
	}
}

func loadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return RunConfig{}, err
	}

	cfg := defaultRunConfig()
	if v, ok := asString(raw["sequence"]); ok {
		cfg.Sequence = v
	}
	if v, ok := asString(raw["structure_path"]); ok {
		cfg.StructurePath = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		cfg.Generations = v
	}
	if v, ok := asInt(raw["candidates_per_generation"]); ok {
		cfg.Candidates = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}
	if v, ok := asString(raw["mode"]); ok {
		cfg.Mode = v
	}
	if v, ok := asInt(raw["pause_ms"]); ok {
		cfg.PauseMS = v
	}
	if v, ok := asString(raw["store"]); ok {
		cfg.Store = v
	}
	if v, ok := asString(raw["db_path"]); ok {
		cfg.DBPath = v
	}
	if v, ok := asString(raw["structure_bin"]); ok {
		cfg.StructureBin = v
	}
	if v, ok := asString(raw["docking_bin"]); ok {
		cfg.DockingBin = v
	}
	if v, ok := asString(raw["ligand_path"]); ok {
		cfg.LigandPath = v
	}
	if v, ok := asString(raw["work_dir"]); ok {
		cfg.WorkDir = v
	}
	return cfg, nil
}

func loadOrDefaultRunConfig(configPath string) (RunConfig, error) {
	if configPath == "" {
		return defaultRunConfig(), nil
	}
	cfg, err := loadRunConfig(configPath)
	if err != nil {
		return RunConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func overrideFromFlags(cfg *RunConfig, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "sequence":
			cfg.Sequence = v.(string)
		case "structure":
			cfg.StructurePath = v.(string)
		case "gens":
			cfg.Generations = v.(int)
		case "candidates":
			cfg.Candidates = v.(int)
		case "seed":
			cfg.Seed = v.(int64)
		case "mode":
			cfg.Mode = v.(string)
		case "pause-ms":
			cfg.PauseMS = v.(int)
		case "store":
			cfg.Store = v.(string)
		case "db-path":
			cfg.DBPath = v.(string)
		case "structure-bin":
			cfg.StructureBin = v.(string)
		case "docking-bin":
			cfg.DockingBin = v.(string)
		case "ligand":
			cfg.LigandPath = v.(string)
		case "work-dir":
			cfg.WorkDir = v.(string)
		}
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

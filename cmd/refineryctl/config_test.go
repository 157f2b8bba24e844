package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeConfig(t, `{
		"sequence": "MKTAYIAKQR",
		"structure_path": "wt.pdb",
		"generations": 25,
		"candidates_per_generation": 8,
		"seed": 99,
		"mode": "tools",
		"pause_ms": 250,
		"store": "sqlite",
		"db_path": "out.db",
		"structure_bin": "/opt/foldx",
		"docking_bin": "/opt/vina",
		"ligand_path": "ligand.pdbqt",
		"work_dir": "/tmp/scratch"
	}`)

	cfg, err := loadRunConfig(path)
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if cfg.Sequence != "MKTAYIAKQR" {
		t.Fatalf("sequence: %q", cfg.Sequence)
	}
	if cfg.StructurePath != "wt.pdb" {
		t.Fatalf("structure_path: %q", cfg.StructurePath)
	}
	if cfg.Generations != 25 || cfg.Candidates != 8 || cfg.Seed != 99 {
		t.Fatalf("numeric fields: gens=%d candidates=%d seed=%d", cfg.Generations, cfg.Candidates, cfg.Seed)
	}
	if cfg.Mode != "tools" || cfg.Store != "sqlite" || cfg.DBPath != "out.db" {
		t.Fatalf("backend fields: mode=%q store=%q db=%q", cfg.Mode, cfg.Store, cfg.DBPath)
	}
	if cfg.StructureBin != "/opt/foldx" || cfg.DockingBin != "/opt/vina" {
		t.Fatalf("tool fields: %q %q", cfg.StructureBin, cfg.DockingBin)
	}
	if cfg.PauseMS != 250 {
		t.Fatalf("pause_ms: %d", cfg.PauseMS)
	}
}

func TestLoadRunConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `{"sequence": "MKTAYIAKQR"}`)

	cfg, err := loadRunConfig(path)
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	want := defaultRunConfig()
	if cfg.Generations != want.Generations {
		t.Fatalf("generations: got %d, want default %d", cfg.Generations, want.Generations)
	}
	if cfg.Mode != want.Mode || cfg.Store != want.Store {
		t.Fatalf("mode/store: got %q/%q", cfg.Mode, cfg.Store)
	}
}

func TestLoadRunConfigCoercesJSONNumbers(t *testing.T) {
	// JSON numbers decode as float64; integer fields must still land
	path := writeConfig(t, `{"generations": 12.0, "seed": 7.0, "pause_ms": 100.0}`)

	cfg, err := loadRunConfig(path)
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if cfg.Generations != 12 || cfg.Seed != 7 || cfg.PauseMS != 100 {
		t.Fatalf("coercion: gens=%d seed=%d pause=%d", cfg.Generations, cfg.Seed, cfg.PauseMS)
	}
}

func TestLoadRunConfigRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"sequence": `)
	if _, err := loadRunConfig(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestOverrideFromFlagsOnlyTouchesSetFlags(t *testing.T) {
	cfg := defaultRunConfig()
	cfg.Sequence = "MKTAYIAKQR"
	cfg.Generations = 25

	overrideFromFlags(&cfg, map[string]bool{"gens": true}, map[string]any{
		"gens":     50,
		"sequence": "SHOULDNOTAPPLY",
	})

	if cfg.Generations != 50 {
		t.Fatalf("gens override: got %d, want 50", cfg.Generations)
	}
	if cfg.Sequence != "MKTAYIAKQR" {
		t.Fatalf("unset flag overwrote sequence: %q", cfg.Sequence)
	}
}

func TestLoadOrDefaultRunConfigWithoutPath(t *testing.T) {
	cfg, err := loadOrDefaultRunConfig("")
	if err != nil {
		t.Fatalf("loadOrDefaultRunConfig: %v", err)
	}
	if cfg != defaultRunConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

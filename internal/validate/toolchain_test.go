package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const referenceStructure = `ATOM      1  CA  MET A   1      10.000  10.000  10.000  1.00  0.00           C
ATOM      2  CA  LYS A   2      12.000  10.000  10.000  1.00  0.00           C
END
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeTool installs an executable script standing in for an external engine.
func writeTool(t *testing.T, path, script string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write tool %s: %v", path, err)
	}
}

func TestValidateReturnsPenaltyWhenToolsAreAbsent(t *testing.T) {
	dir := t.TempDir()
	referencePath := filepath.Join(dir, "wildtype.pdb")
	writeFile(t, referencePath, referenceStructure)

	tc := NewToolChain(ToolChainConfig{
		StructureBin: filepath.Join(dir, "no-such-engine"),
		DockingBin:   filepath.Join(dir, "no-such-docker"),
		LigandPath:   filepath.Join(dir, "no-such-ligand.pdbqt"),
		WorkDir:      filepath.Join(dir, "work"),
		Timeout:      5 * time.Second,
	})

	res, err := tc.Validate(context.Background(), "MK", referencePath, "cand-1")
	if err != nil {
		t.Fatalf("validate must be total: %v", err)
	}
	if res.Stability != 100.0 || res.Affinity != 0.0 {
		t.Fatalf("expected penalty result, got: %+v", res)
	}
}

func TestValidateReturnsPenaltyWhenReferenceMissing(t *testing.T) {
	dir := t.TempDir()
	tc := NewToolChain(ToolChainConfig{
		StructureBin: "engine",
		DockingBin:   "docker",
		LigandPath:   "ligand",
		WorkDir:      filepath.Join(dir, "work"),
	})

	res, err := tc.Validate(context.Background(), "MK", filepath.Join(dir, "missing.pdb"), "cand-2")
	if err != nil {
		t.Fatalf("validate must be total: %v", err)
	}
	if res != PenaltyResult() {
		t.Fatalf("expected penalty result, got: %+v", res)
	}
}

func TestValidateParsesBothEngineOutputs(t *testing.T) {
	dir := t.TempDir()
	referencePath := filepath.Join(dir, "wildtype.pdb")
	writeFile(t, referencePath, referenceStructure)

	ligandPath := filepath.Join(dir, "ligand.pdbqt")
	writeFile(t, ligandPath, "ATOM      1  C   LIG A   1       0.000   0.000   0.000 +0.00 C\n")

	// The structure engine writes a mutant pdb and a tab-delimited report.
	structureBin := filepath.Join(dir, "structure-engine")
	writeTool(t, structureBin, `cat > Average_model.fxout <<'EOF'
Pdb	total energy	backbone
mutant_1.pdb	-7.25	1.0
EOF
cp reference.pdb mutant_1.pdb
`)

	// The docking engine annotates its output with a RESULT remark.
	dockingBin := filepath.Join(dir, "docking-engine")
	writeTool(t, dockingBin, `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--out" ]; then out="$2"; fi
  shift
done
printf 'REMARK RESULT: -8.40 0.000 0.000\n' > "$out"
`)

	tc := NewToolChain(ToolChainConfig{
		StructureBin: structureBin,
		DockingBin:   dockingBin,
		LigandPath:   ligandPath,
		WorkDir:      filepath.Join(dir, "work"),
		Timeout:      10 * time.Second,
	})

	res, err := tc.Validate(context.Background(), "MK", referencePath, "cand-3")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Stability != -7.25 {
		t.Fatalf("stability: got=%f want=-7.25", res.Stability)
	}
	if res.Affinity != -8.40 {
		t.Fatalf("affinity: got=%f want=-8.40", res.Affinity)
	}
	if res.StructurePath == "" {
		t.Fatal("expected mutant structure path")
	}
	if filepath.Dir(res.StructurePath) != filepath.Join(dir, "work", "cand-3") {
		t.Fatalf("mutant outside candidate workdir: %s", res.StructurePath)
	}
}

func TestValidateKillsHungToolOnTimeout(t *testing.T) {
	dir := t.TempDir()
	referencePath := filepath.Join(dir, "wildtype.pdb")
	writeFile(t, referencePath, referenceStructure)

	structureBin := filepath.Join(dir, "hung-engine")
	writeTool(t, structureBin, "sleep 60\n")

	tc := NewToolChain(ToolChainConfig{
		StructureBin: structureBin,
		DockingBin:   structureBin,
		LigandPath:   referencePath,
		WorkDir:      filepath.Join(dir, "work"),
		Timeout:      200 * time.Millisecond,
	})

	start := time.Now()
	res, err := tc.Validate(context.Background(), "MK", referencePath, "cand-4")
	if err != nil {
		t.Fatalf("validate must be total: %v", err)
	}
	if res != PenaltyResult() {
		t.Fatalf("expected penalty result, got: %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout did not terminate the tool: %s", elapsed)
	}
}

func TestValidateRejectsMalformedDockingOutput(t *testing.T) {
	dir := t.TempDir()
	referencePath := filepath.Join(dir, "wildtype.pdb")
	writeFile(t, referencePath, referenceStructure)

	ligandPath := filepath.Join(dir, "ligand.pdbqt")
	writeFile(t, ligandPath, "ATOM\n")

	structureBin := filepath.Join(dir, "structure-engine")
	writeTool(t, structureBin, `printf 'Pdb\ttotal energy\nmutant_1.pdb\t-3.0\n' > Average_model.fxout
cp reference.pdb mutant_1.pdb
`)
	dockingBin := filepath.Join(dir, "docking-engine")
	writeTool(t, dockingBin, `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--out" ]; then out="$2"; fi
  shift
done
printf 'no remark here\n' > "$out"
`)

	tc := NewToolChain(ToolChainConfig{
		StructureBin: structureBin,
		DockingBin:   dockingBin,
		LigandPath:   ligandPath,
		WorkDir:      filepath.Join(dir, "work"),
		Timeout:      10 * time.Second,
	})

	res, err := tc.Validate(context.Background(), "MK", referencePath, "cand-5")
	if err != nil {
		t.Fatalf("validate must be total: %v", err)
	}
	if res != PenaltyResult() {
		t.Fatalf("parse failure must map to penalty, got: %+v", res)
	}
}

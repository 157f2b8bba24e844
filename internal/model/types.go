package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NoveltyStatus annotates whether a sequence had been seen before it was scored.
type NoveltyStatus string

const (
	NoveltyNovel     NoveltyStatus = "novel"
	NoveltyDuplicate NoveltyStatus = "duplicate"
)

// Candidate is one scored sequence. It is created by the validator, recorded
// once, and never mutated afterwards. ParentID is empty for the founding
// wild-type candidate.
type Candidate struct {
	VersionedRecord
	ID            string        `json:"id"`
	Sequence      string        `json:"sequence"`
	ParentID      string        `json:"parent_id,omitempty"`
	Affinity      float64       `json:"affinity"`
	Stability     float64       `json:"stability"`
	Generation    int           `json:"generation"`
	Novelty       NoveltyStatus `json:"novelty"`
	StructurePath string        `json:"structure_path,omitempty"`
}

// GenerationReport summarizes one loop iteration for observers and run summaries.
type GenerationReport struct {
	Generation   int     `json:"generation"`
	Evaluated    int     `json:"evaluated"`
	Duplicates   int     `json:"duplicates"`
	BestAffinity float64 `json:"best_affinity"`
	Accepted     bool    `json:"accepted"`
	MutationRate int     `json:"mutation_rate"`
}

// RunSummary is returned by the facade after a bounded synchronous run.
type RunSummary struct {
	RunID       string             `json:"run_id"`
	Founder     Candidate          `json:"founder"`
	Best        Candidate          `json:"best"`
	Generations []GenerationReport `json:"generations"`
	Leaps       int                `json:"leaps"`
}

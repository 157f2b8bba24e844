package validate

import "context"

// Result carries the two objective scores plus a reference to the structure
// the validator produced, if any.
type Result struct {
	Affinity      float64 `json:"affinity"`
	Stability     float64 `json:"stability"`
	StructurePath string  `json:"structure_path,omitempty"`
}

// Penalty scores assigned when the tool-backed strategy fails. Zero affinity
// is the "no real result" sentinel the selection step excludes; the high
// stability value fails the gate so the branch is discarded naturally.
const (
	PenaltyAffinity  = 0.0
	PenaltyStability = 100.0
)

// Validator scores one candidate sequence against a reference structure.
// Implementations must be total over their inputs: the tool-backed strategy
// converts every internal fault into the penalty result instead of returning
// an error.
type Validator interface {
	Name() string
	Validate(ctx context.Context, sequence, structureRef, id string) (Result, error)
}

// PenaltyResult is the fixed clearly-bad score used for failed evaluations.
func PenaltyResult() Result {
	return Result{Affinity: PenaltyAffinity, Stability: PenaltyStability}
}

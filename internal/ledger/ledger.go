package ledger

import (
	"context"

	"refinery/internal/model"
)

// Ledger is the append-only record of every evaluated candidate. Record never
// overwrites or deletes; Reset is the single explicit wipe path.
type Ledger interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, candidate model.Candidate) error
	Recent(ctx context.Context, limit int) ([]model.Candidate, error)
	Best(ctx context.Context) (model.Candidate, bool, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// CloseIfSupported closes backends that hold external resources.
func CloseIfSupported(l Ledger) error {
	closer, ok := l.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

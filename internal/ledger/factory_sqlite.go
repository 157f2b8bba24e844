//go:build sqlite

package ledger

// DefaultKind is the backend a bare invocation gets in this build.
func DefaultKind() string { return "sqlite" }

func newSQLiteLedger(path string) (Ledger, error) {
	return NewSQLiteLedger(path), nil
}

//go:build !sqlite

package ledger

import "fmt"

// DefaultKind is the backend a bare invocation gets in this build.
func DefaultKind() string { return "memory" }

func newSQLiteLedger(_ string) (Ledger, error) {
	return nil, fmt.Errorf("sqlite backend unavailable in this build; rebuild with -tags sqlite")
}

package ledger

import "fmt"

func New(kind, sqlitePath string) (Ledger, error) {
	switch kind {
	case "", "memory":
		return NewMemoryLedger(), nil
	case "sqlite":
		return newSQLiteLedger(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", kind)
	}
}

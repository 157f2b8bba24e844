//go:build sqlite

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"refinery/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteLedger is the durable backend. Candidates are stored append-only with
// a monotonically increasing seq column so recency queries survive restarts.
type SQLiteLedger struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteLedger(path string) *SQLiteLedger {
	return &SQLiteLedger{path: path}
}

func (l *SQLiteLedger) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" {
		return errors.New("sqlite path is required")
	}
	if l.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", l.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	l.db = db
	return nil
}

func (l *SQLiteLedger) Record(ctx context.Context, candidate model.Candidate) error {
	db, err := l.getDB()
	if err != nil {
		return err
	}
	if candidate.ID == "" {
		return errors.New("candidate id is required")
	}

	candidate = Stamp(candidate)
	payload, err := EncodeCandidate(candidate)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO candidates (id, affinity, stability, generation, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, candidate.ID, candidate.Affinity, candidate.Stability, candidate.Generation,
		candidate.SchemaVersion, candidate.CodecVersion, payload)
	return err
}

func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]model.Candidate, error) {
	db, err := l.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT payload FROM candidates ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		candidate, err := DecodeCandidate(payload)
		if err != nil {
			return nil, fmt.Errorf("decode candidate: %w", err)
		}
		out = append(out, candidate)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Best(ctx context.Context) (model.Candidate, bool, error) {
	db, err := l.getDB()
	if err != nil {
		return model.Candidate{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `
		SELECT payload FROM candidates ORDER BY affinity ASC, seq DESC LIMIT 1
	`).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Candidate{}, false, nil
		}
		return model.Candidate{}, false, err
	}

	candidate, err := DecodeCandidate(payload)
	if err != nil {
		return model.Candidate{}, false, fmt.Errorf("decode candidate: %w", err)
	}
	return candidate, true, nil
}

func (l *SQLiteLedger) Count(ctx context.Context) (int, error) {
	db, err := l.getDB()
	if err != nil {
		return 0, err
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (l *SQLiteLedger) Reset(ctx context.Context) error {
	db, err := l.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM candidates`)
	return err
}

func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *SQLiteLedger) getDB() (*sql.DB, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.db == nil {
		return nil, errors.New("ledger is not initialized")
	}
	return l.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS candidates (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			affinity REAL NOT NULL,
			stability REAL NOT NULL,
			generation INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_candidates_affinity ON candidates(affinity);
	`)
	return err
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS executions (
	digest        TEXT PRIMARY KEY,
	committed     INTEGER NOT NULL,
	instructions  INTEGER NOT NULL,
	flash_loans   INTEGER NOT NULL,
	duration_ns   INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_created_at ON executions (created_at DESC);
`

// SQLiteStore journals executions in an embedded sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the journal at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history: %w", err)
	}
	// sqlite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (digest, committed, instructions, flash_loans, duration_ns, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (digest) DO UPDATE SET
			committed = excluded.committed,
			error = excluded.error`,
		rec.Digest, boolToInt(rec.Committed), rec.Instructions, rec.FlashLoans,
		rec.DurationNano, rec.Error, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", rec.Digest, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, digest string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT digest, committed, instructions, flash_loans, duration_ns, error, created_at
		 FROM executions WHERE digest = ?`, digest)
	return scanRecord(row)
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT digest, committed, instructions, flash_loans, duration_ns, error, created_at
		 FROM executions ORDER BY created_at DESC, digest LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		committed int64
		createdAt int64
	)
	err := row.Scan(&rec.Digest, &committed, &rec.Instructions, &rec.FlashLoans,
		&rec.DurationNano, &rec.Error, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Committed = committed != 0
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

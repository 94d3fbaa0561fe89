package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS executions (
	digest        TEXT PRIMARY KEY,
	committed     BOOLEAN NOT NULL,
	instructions  INTEGER NOT NULL,
	flash_loans   INTEGER NOT NULL,
	duration_ns   BIGINT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	created_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_created_at ON executions (created_at DESC);
`

// PostgresStore journals executions in a shared postgres database, for
// deployments where several nodes report into one journal.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with the given DSN and ensures the schema.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres history: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres history: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (digest, committed, instructions, flash_loans, duration_ns, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (digest) DO UPDATE SET
			committed = excluded.committed,
			error = excluded.error`,
		rec.Digest, rec.Committed, rec.Instructions, rec.FlashLoans,
		rec.DurationNano, rec.Error, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", rec.Digest, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, digest string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT digest, committed, instructions, flash_loans, duration_ns, error, created_at
		 FROM executions WHERE digest = $1`, digest)
	return scanPGRecord(row)
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT digest, committed, instructions, flash_loans, duration_ns, error, created_at
		 FROM executions ORDER BY created_at DESC, digest LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanPGRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		createdAt int64
	)
	err := row.Scan(&rec.Digest, &rec.Committed, &rec.Instructions, &rec.FlashLoans,
		&rec.DurationNano, &rec.Error, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

// Package history keeps a relational record of every execution the node
// has processed, committed or aborted, for operator queries. The
// authoritative state lives in the venue store; this table is a journal.
package history

import (
	"context"
	"fmt"
	"time"
)

// Record is one row of the execution journal.
type Record struct {
	Digest       string
	Committed    bool
	Instructions int
	FlashLoans   int
	DurationNano int64
	Error        string
	CreatedAt    time.Time
}

// Store is the journal surface. Both the sqlite and postgres backends
// satisfy it.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, digest string) (*Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open builds a store for the configured driver. Supported drivers are
// "sqlite" and "postgres"; an empty driver disables history.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(dsn)
	case "postgres":
		return OpenPostgres(dsn)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown history driver %q", driver)
	}
}

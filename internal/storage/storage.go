// Package storage wires backend selection for the key-value stores.
package storage

import (
	"fmt"

	"github.com/loopfi/routerd/internal/storage/database"
	"github.com/loopfi/routerd/internal/storage/database/leveldb"
	"github.com/loopfi/routerd/internal/storage/database/pebble"
)

// Backends accepted in configuration.
const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
)

// NewManager returns a database manager for the configured backend.
func NewManager(backend, path string) (database.Manager, error) {
	switch backend {
	case BackendPebble, "":
		return pebble.NewManager(path), nil
	case BackendLevelDB:
		return leveldb.NewManager(path), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

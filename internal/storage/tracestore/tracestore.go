// Package tracestore archives execution traces: for every committed
// batch, the instruction list and the resulting value ledger, keyed by
// the batch digest. Records are compressed before hitting the backing
// key-value store and served through an LRU read cache.
package tracestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/loopfi/routerd/internal/router"
	"github.com/loopfi/routerd/internal/storage/database"
	"github.com/loopfi/routerd/internal/wire"
)

// ErrTraceNotFound: no trace is archived under the given digest.
var ErrTraceNotFound = errors.New("trace not found")

// Trace is the archived record of one committed execution.
type Trace struct {
	Digest       [32]byte      `codec:"digest"`
	Batch        router.Batch  `codec:"batch"`
	Cells        []router.Cell `codec:"cells"`
	FlashLoans   int           `codec:"flash_loans,omitempty"`
	Committed    bool          `codec:"committed"`
	DurationNano int64         `codec:"duration_ns"`
	ArchivedAt   int64         `codec:"archived_at"`
}

const defaultCacheSize = 4096

// Store persists traces. Safe for concurrent use.
type Store struct {
	db   database.DB
	comp Compressor

	cache *lru.Cache[[32]byte, *Trace]

	// negative remembers digests known to be absent so repeated misses
	// skip the backend.
	negative *lru.Cache[[32]byte, struct{}]
}

// Options configure a Store. The zero value gives lz4 compression and
// default cache sizes.
type Options struct {
	Compressor Compressor
	CacheSize  int
}

// New opens a trace store over db.
func New(db database.DB, opts Options) (*Store, error) {
	if opts.Compressor == nil {
		opts.Compressor = &LZ4Compressor{}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}

	cache, err := lru.New[[32]byte, *Trace](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	negative, err := lru.New[[32]byte, struct{}](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, comp: opts.Compressor, cache: cache, negative: negative}, nil
}

// Archive stores the trace of a finished execution.
func (s *Store) Archive(ctx context.Context, batch router.Batch, res *router.Result) error {
	tr := &Trace{
		Digest:       res.Digest,
		Batch:        batch,
		Cells:        res.Cells,
		FlashLoans:   res.FlashLoans,
		Committed:    res.Committed,
		DurationNano: res.Duration.Nanoseconds(),
		ArchivedAt:   time.Now().Unix(),
	}

	raw, err := wire.Marshal(tr)
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	compressed, err := s.comp.Compress(raw)
	if err != nil {
		return err
	}
	if err := s.db.Write(ctx, traceKey(res.Digest), compressed); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}

	s.cache.Add(res.Digest, tr)
	s.negative.Remove(res.Digest)
	return nil
}

// Get returns the trace archived under digest, or ErrTraceNotFound.
func (s *Store) Get(ctx context.Context, digest [32]byte) (*Trace, error) {
	if tr, ok := s.cache.Get(digest); ok {
		return tr, nil
	}
	if _, ok := s.negative.Get(digest); ok {
		return nil, fmt.Errorf("%w: %x", ErrTraceNotFound, digest)
	}

	compressed, err := s.db.Read(ctx, traceKey(digest))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			s.negative.Add(digest, struct{}{})
			return nil, fmt.Errorf("%w: %x", ErrTraceNotFound, digest)
		}
		return nil, err
	}

	raw, err := s.comp.Decompress(compressed)
	if err != nil {
		return nil, err
	}
	var tr Trace
	if err := wire.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}

	s.cache.Add(digest, &tr)
	return &tr, nil
}

// Has reports whether a trace is archived under digest.
func (s *Store) Has(ctx context.Context, digest [32]byte) (bool, error) {
	_, err := s.Get(ctx, digest)
	if errors.Is(err, ErrTraceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func traceKey(digest [32]byte) []byte {
	key := make([]byte, 0, len("trace/")+len(digest))
	key = append(key, "trace/"...)
	return append(key, digest[:]...)
}

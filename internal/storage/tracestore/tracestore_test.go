package tracestore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/routerd/internal/router"
	"github.com/loopfi/routerd/internal/storage/database"
)

type memDB struct {
	data  map[string][]byte
	reads int
}

func newMemDB() *memDB {
	return &memDB{data: make(map[string][]byte)}
}

func (m *memDB) Read(ctx context.Context, key []byte) ([]byte, error) {
	m.reads++
	v, ok := m.data[string(key)]
	if !ok {
		return nil, database.ErrKeyNotFound
	}
	return v, nil
}

func (m *memDB) Write(ctx context.Context, key, value []byte) error {
	m.data[string(key)] = value
	return nil
}

func (m *memDB) Delete(ctx context.Context, key []byte) error {
	delete(m.data, string(key))
	return nil
}

func (m *memDB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	for _, op := range ops {
		if op.Type == database.BatchPut {
			m.data[string(op.Key)] = op.Value
		} else {
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

func (m *memDB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	return nil, assert.AnError
}

func testResult(t *testing.T) (router.Batch, *router.Result) {
	t.Helper()
	b := router.NewBatch()
	in := b.PullToken(100, "USDC", "alice")
	b.PushToken(in, "bob")
	batch, err := b.Build()
	require.NoError(t, err)

	digest, err := batch.Digest()
	require.NoError(t, err)

	return batch, &router.Result{
		Digest:    digest,
		Cells:     []router.Cell{{Token: "USDC", Amount: 100, Origin: 0, Kind: router.Real}},
		Committed: true,
		Duration:  12 * time.Millisecond,
	}
}

func TestArchiveAndGet(t *testing.T) {
	db := newMemDB()
	store, err := New(db, Options{})
	require.NoError(t, err)

	batch, res := testResult(t)
	require.NoError(t, store.Archive(context.Background(), batch, res))

	tr, err := store.Get(context.Background(), res.Digest)
	require.NoError(t, err)
	assert.Equal(t, res.Digest, tr.Digest)
	assert.True(t, tr.Committed)
	require.Len(t, tr.Cells, 1)
	assert.Equal(t, uint64(100), tr.Cells[0].Amount)
	assert.Len(t, tr.Batch, 2)
	assert.Equal(t, res.Duration.Nanoseconds(), tr.DurationNano)
}

func TestGetServedFromCache(t *testing.T) {
	db := newMemDB()
	store, err := New(db, Options{})
	require.NoError(t, err)

	batch, res := testResult(t)
	require.NoError(t, store.Archive(context.Background(), batch, res))

	for i := 0; i < 5; i++ {
		_, err := store.Get(context.Background(), res.Digest)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, db.reads, "archive primes the cache; gets never hit the backend")
}

func TestGetMissAndNegativeCache(t *testing.T) {
	db := newMemDB()
	store, err := New(db, Options{})
	require.NoError(t, err)

	var digest [32]byte
	digest[0] = 0x42

	_, err = store.Get(context.Background(), digest)
	require.ErrorIs(t, err, ErrTraceNotFound)

	_, err = store.Get(context.Background(), digest)
	require.ErrorIs(t, err, ErrTraceNotFound)
	assert.Equal(t, 1, db.reads, "repeated misses are answered by the negative cache")

	has, err := store.Has(context.Background(), digest)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestArchiveClearsNegativeEntry(t *testing.T) {
	db := newMemDB()
	store, err := New(db, Options{})
	require.NoError(t, err)

	batch, res := testResult(t)
	_, err = store.Get(context.Background(), res.Digest)
	require.ErrorIs(t, err, ErrTraceNotFound)

	require.NoError(t, store.Archive(context.Background(), batch, res))

	has, err := store.Has(context.Background(), res.Digest)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGetDecompressesFromBackend(t *testing.T) {
	db := newMemDB()
	store, err := New(db, Options{})
	require.NoError(t, err)

	batch, res := testResult(t)
	require.NoError(t, store.Archive(context.Background(), batch, res))

	// A second store over the same backend has cold caches.
	store2, err := New(db, Options{})
	require.NoError(t, err)

	tr, err := store2.Get(context.Background(), res.Digest)
	require.NoError(t, err)
	assert.Equal(t, res.Digest, tr.Digest)
}

func TestCompressors(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("a"),
		bytes.Repeat([]byte("routerd "), 512), // highly compressible
		{0x01, 0xff, 0x5a, 0x00, 0x99},        // tiny, likely incompressible
	}

	for _, comp := range []Compressor{&LZ4Compressor{}, &NoCompressor{}} {
		t.Run(comp.Name(), func(t *testing.T) {
			for _, payload := range payloads {
				framed, err := comp.Compress(payload)
				require.NoError(t, err)
				got, err := comp.Decompress(framed)
				require.NoError(t, err)
				require.Equal(t, payload, got)
			}
		})
	}
}

func TestLZ4ActuallyShrinks(t *testing.T) {
	comp := &LZ4Compressor{}
	payload := bytes.Repeat([]byte("the same cell over and over "), 256)

	framed, err := comp.Compress(payload)
	require.NoError(t, err)
	assert.Less(t, len(framed), len(payload))
}

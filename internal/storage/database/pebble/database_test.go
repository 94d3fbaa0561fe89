package pebble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/routerd/internal/storage/database"
)

func openTestDB(t *testing.T) database.DB {
	t.Helper()
	m := NewManager(t.TempDir())
	db, err := m.OpenDB("test")
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return db
}

func TestReadWriteDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Read(ctx, []byte("missing"))
	require.ErrorIs(t, err, database.ErrKeyNotFound)

	require.NoError(t, db.Write(ctx, []byte("k1"), []byte("v1")))
	got, err := db.Read(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, db.Delete(ctx, []byte("k1")))
	_, err = db.Read(ctx, []byte("k1"))
	require.ErrorIs(t, err, database.ErrKeyNotFound)
}

func TestBatchIsAtomicSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, []byte("stale"), []byte("x")))

	err := db.Batch(ctx, []database.BatchOperation{
		{Type: database.BatchPut, Key: []byte("a"), Value: []byte("1")},
		{Type: database.BatchPut, Key: []byte("b"), Value: []byte("2")},
		{Type: database.BatchDelete, Key: []byte("stale")},
	})
	require.NoError(t, err)

	got, err := db.Read(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	_, err = db.Read(ctx, []byte("stale"))
	require.ErrorIs(t, err, database.ErrKeyNotFound)
}

func TestIteratorRange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
		require.NoError(t, db.Write(ctx, []byte(k), []byte("v-"+k)))
	}

	it, err := db.Iterator(ctx, []byte("a/"), []byte("a0"))
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		assert.Equal(t, "v-"+string(it.Key()), string(it.Value()))
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"a/1", "a/2", "a/3"}, keys)
}

func TestIteratorFullScan(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, []byte("x"), []byte("1")))
	require.NoError(t, db.Write(ctx, []byte("y"), []byte("2")))

	it, err := db.Iterator(ctx, nil, nil)
	require.NoError(t, err)
	defer it.Close()

	n := 0
	for it.Next() {
		n++
	}
	require.NoError(t, it.Error())
	assert.Equal(t, 2, n)
}

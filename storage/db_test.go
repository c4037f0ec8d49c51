package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

func collect(t *testing.T, r Reader, prefix string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	var order []string
	err := r.Iterate([]byte(prefix), func(key, value []byte) error {
		out[string(key)] = string(value)
		order = append(order, string(key))
		return nil
	})
	require.NoError(t, err)
	for i := 1; i < len(order); i++ {
		require.Less(t, order[i-1], order[i], "iteration must be ordered")
	}
	return out
}

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	_, err := db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.Put([]byte("a/2"), []byte("two")))
	require.NoError(t, db.Put([]byte("a/1"), []byte("one")))
	require.NoError(t, db.Put([]byte("b/1"), []byte("other")))

	got, err := db.Get([]byte("a/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), got)

	ok, err := db.Has([]byte("b/1"))
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, map[string]string{"a/1": "one", "a/2": "two"}, collect(t, db, "a/"))

	batch := new(leveldb.Batch)
	batch.Put([]byte("a/3"), []byte("three"))
	batch.Put([]byte("a/1"), []byte("uno"))
	require.NoError(t, db.Write(batch))
	require.Equal(t, map[string]string{"a/1": "uno", "a/2": "two", "a/3": "three"}, collect(t, db, "a/"))
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)
	exerciseDatabase(t, db)
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	exerciseDatabase(t, db)
	db.Close()

	reopened, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get([]byte("a/3"))
	require.NoError(t, err)
	require.Equal(t, []byte("three"), got)
}

func TestMemDBGetReturnsCopy(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("k"), []byte("value")))
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	got[0] = 'X'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), again)
}

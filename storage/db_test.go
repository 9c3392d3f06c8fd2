package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("account:a"), []byte("1")))
	got, err := db.Get([]byte("account:a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	require.NoError(t, db.WriteBatch([]KV{
		{Key: []byte("account:c"), Value: []byte("3")},
		{Key: []byte("account:b"), Value: []byte("2")},
		{Key: []byte("other:x"), Value: []byte("9")},
	}))
	ok, err := db.Has([]byte("account:b"))
	require.NoError(t, err)
	require.True(t, ok)

	var keys []string
	require.NoError(t, db.Iterate([]byte("account:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	require.Equal(t, []string{"account:a", "account:b", "account:c"}, keys)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	exerciseDatabase(t, db1)
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.Get([]byte("account:c"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), got)
}

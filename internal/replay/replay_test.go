package replay

import (
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay.db")
	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExpectedItems(t *testing.T) {
	got := ExpectedItems(1000, 30*time.Minute, 3082)
	want := uint((1000 * (30 * 60)) / 3082)
	require.Equal(t, want, got)
}

func TestExpectedItemsZeroPacketSize(t *testing.T) {
	require.Equal(t, uint(0), ExpectedItems(1000, time.Minute, 0))
}

func TestIsReplayNovelThenDuplicate(t *testing.T) {
	db := openTestDB(t)
	set, err := Open(db, 1, 16)
	require.NoError(t, err)

	tag := []byte("0123456789abcdef0123456789abcdef")

	replay, err := set.IsReplay(tag)
	require.NoError(t, err)
	require.False(t, replay)

	replay, err = set.IsReplay(tag)
	require.NoError(t, err)
	require.True(t, replay, "a tag inserted once must be reported as a replay on the second check")
}

func TestIsReplayDistinctTagsNeverCollide(t *testing.T) {
	db := openTestDB(t)
	set, err := Open(db, 1, 16)
	require.NoError(t, err)

	a := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	replay, err := set.IsReplay(a)
	require.NoError(t, err)
	require.False(t, replay)

	replay, err = set.IsReplay(b)
	require.NoError(t, err)
	require.False(t, replay)
}

func TestOpenRepopulatesFilterFromDurableStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.db")
	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)

	set, err := Open(db, 1, 16)
	require.NoError(t, err)
	tag := []byte("ffffffffffffffffffffffffffffffff")
	_, err = set.IsReplay(tag)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })

	reopened, err := Open(db2, 1, 16)
	require.NoError(t, err)

	replay, err := reopened.IsReplay(tag)
	require.NoError(t, err)
	require.True(t, replay, "a restart must not reopen with a cold filter")
}

func TestLenCountsDurableEntries(t *testing.T) {
	db := openTestDB(t)
	set, err := Open(db, 1, 16)
	require.NoError(t, err)

	n, err := set.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = set.IsReplay([]byte("11111111111111111111111111111111"))
	require.NoError(t, err)
	_, err = set.IsReplay([]byte("22222222222222222222222222222222"))
	require.NoError(t, err)

	n, err = set.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

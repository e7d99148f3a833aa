package mixkey

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
	"github.com/stretchr/testify/require"
)

func TestEnsureCreatesThenReopensSameKey(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 1000)
	defer store.Close()

	k1, err := store.Ensure(5, 16)
	require.NoError(t, err)
	require.Equal(t, uint64(5), k1.Epoch)
	require.NotNil(t, k1.Private)
	require.NotNil(t, k1.Replay)

	k2, err := store.Ensure(5, 16)
	require.NoError(t, err)
	require.Same(t, k1, k2, "Ensure on an already-open epoch must return the cached EpochKey")
}

func TestEnsurePersistsPrivateKeyAcrossStores(t *testing.T) {
	dir := t.TempDir()

	store1 := NewStore(dir, 1000)
	k1, err := store1.Ensure(7, 16)
	require.NoError(t, err)
	wantPriv := k1.Private.Bytes()
	store1.Close()

	store2 := NewStore(dir, 1000)
	defer store2.Close()
	k2, err := store2.Ensure(7, 16)
	require.NoError(t, err)
	require.Equal(t, wantPriv, k2.Private.Bytes())
}

func TestEnsureDetectsEpochMismatch(t *testing.T) {
	dir := t.TempDir()

	// Corrupt the on-disk state directly: write a store for epoch 3's
	// directory, but record epoch 4 in its metadata bucket.
	epochDir := dirName(dir, 3)
	require.NoError(t, os.MkdirAll(epochDir, os.ModeDir|dirMode))
	dbPath := filepath.Join(epochDir, "store.db")
	db, err := bolt.Open(dbPath, fileMode, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		var epochBytes [8]byte
		binary.LittleEndian.PutUint64(epochBytes[:], 4)
		if err := bkt.Put([]byte(epochKeyName), epochBytes[:]); err != nil {
			return err
		}
		return bkt.Put([]byte(privateKeyName), make([]byte, 32))
	}))
	require.NoError(t, db.Close())

	store := NewStore(dir, 1000)
	defer store.Close()

	_, err = store.Ensure(3, 16)
	require.ErrorIs(t, err, ErrLoadCacheFailed)
}

func TestShadowSnapshotsCurrentKeys(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 1000)
	defer store.Close()

	_, err := store.Ensure(1, 16)
	require.NoError(t, err)
	_, err = store.Ensure(2, 16)
	require.NoError(t, err)

	shadow := make(map[uint64]*EpochKey)
	store.Shadow(shadow)
	require.Len(t, shadow, 2)
	require.Contains(t, shadow, uint64(1))
	require.Contains(t, shadow, uint64(2))
}

func TestShadowClearsStaleEntries(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 1000)
	defer store.Close()

	_, err := store.Ensure(1, 16)
	require.NoError(t, err)

	shadow := map[uint64]*EpochKey{99: nil}
	store.Shadow(shadow)
	require.NotContains(t, shadow, uint64(99))
	require.Contains(t, shadow, uint64(1))
}

func TestPruneDropsOutOfWindowEpochs(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 1000)
	defer store.Close()

	for _, e := range []uint64{3, 4, 5, 6, 7} {
		_, err := store.Ensure(e, 16)
		require.NoError(t, err)
	}

	store.Prune(5)

	shadow := make(map[uint64]*EpochKey)
	store.Shadow(shadow)
	require.ElementsMatch(t, []uint64{4, 5, 6}, keysOf(shadow))
}

func TestInRetentionWindow(t *testing.T) {
	require.True(t, inRetentionWindow(5, 5))
	require.True(t, inRetentionWindow(4, 5))
	require.True(t, inRetentionWindow(6, 5))
	require.False(t, inRetentionWindow(3, 5))
	require.False(t, inRetentionWindow(7, 5))

	// current == 0 must not underflow when checking current-1.
	require.False(t, inRetentionWindow(^uint64(0), 0))
	require.True(t, inRetentionWindow(0, 0))
	require.True(t, inRetentionWindow(1, 0))
}

func keysOf(m map[uint64]*EpochKey) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Package mixkey owns the per-epoch mix private key and its bound
// replay cache (spec §3 EpochKey, §4.4 Mix-Key Store), including the
// worker-facing "shadow" snapshot that lets crypto workers avoid
// contending on a shared lock on the hot path (spec §9).
//
// Grounded on meskio-server/internal/mixkey/mixkey.go (bbolt
// metadata/replay bucket split, New()'s load-or-create flow) and
// mixmasala-server/server.go's reshadowCryptoWorkers/updateMixKeys
// wiring for the shadow projection.
package mixkey

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/awnumar/memguard"
	bolt "go.etcd.io/bbolt"

	"github.com/katzenpost/katzenpost/minion/internal/nike"
	"github.com/katzenpost/katzenpost/minion/internal/nike/ecdh"
	"github.com/katzenpost/katzenpost/minion/internal/replay"
)

const (
	metadataBucket = "metadata"
	epochKeyName   = "epoch"
	privateKeyName = "private_key"
	dirMode        = 0700
	fileMode       = 0600
)

// ErrLoadCacheFailed is returned by Store.Ensure when the epoch recorded on
// disk disagrees with the epoch being requested (spec §4.3, §7,
// §8 property 3).
var ErrLoadCacheFailed = fmt.Errorf("mixkey: stored epoch does not match requested epoch")

func dirName(dataDir string, epoch uint64) string {
	return filepath.Join(dataDir, fmt.Sprintf("mix_key.%d", epoch))
}

// EpochKey is the asymmetric key material bound to one epoch, plus
// that epoch's replay cache (spec §3).
type EpochKey struct {
	Epoch   uint64
	Private nike.PrivateKey
	Public  nike.PublicKey
	Replay  *replay.Set

	db *bolt.DB
}

// Close flushes and closes the epoch's durable store and zeroes the
// private key in memory.
func (k *EpochKey) Close() error {
	var err error
	if k.db != nil {
		k.db.Sync()
		err = k.db.Close()
		k.db = nil
	}
	if k.Private != nil {
		k.Private.Reset()
	}
	replay.Forget(k.Epoch)
	return err
}

// unlink removes the epoch's on-disk directory. Must be called after
// Close.
func (k *EpochKey) unlink(dataDir string) error {
	return os.RemoveAll(dirName(dataDir, k.Epoch))
}

// Store owns the retention window {current-1, current, current+1} of
// EpochKeys, and exposes a cheaply clonable snapshot to crypto workers
// via Shadow.
type Store struct {
	mu       sync.Mutex
	dataDir  string
	scheme   nike.Scheme
	lineRate uint64

	keys map[uint64]*EpochKey
}

// NewStore creates a Store rooted at dataDir. lineRateBytesPerSecond
// is recorded on the Store but not read by it: each epoch's replay
// cache is sized by the expectedItems argument to Ensure, which the
// caller computes from server.line_rate via replay.ExpectedItems.
func NewStore(dataDir string, lineRateBytesPerSecond uint64) *Store {
	return &Store{
		dataDir:  dataDir,
		scheme:   ecdh.NewEcdhNike(rand.Reader),
		lineRate: lineRateBytesPerSecond,
		keys:     make(map[uint64]*EpochKey),
	}
}

// Ensure opens or creates the on-disk store for epoch, generating a
// fresh keypair from the OS entropy source if none is persisted yet,
// and returns the EpochKey (spec §4.4). expectedItems sizes the
// epoch's replay bloom filter per replay.ExpectedItems.
func (s *Store) Ensure(epoch uint64, expectedItems uint) (*EpochKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[epoch]; ok {
		return k, nil
	}

	dir := dirName(s.dataDir, epoch)
	if err := os.MkdirAll(dir, os.ModeDir|dirMode); err != nil {
		return nil, fmt.Errorf("mixkey: failed to create epoch directory: %w", err)
	}
	dbPath := filepath.Join(dir, "store.db")
	db, err := bolt.Open(dbPath, fileMode, nil)
	if err != nil {
		return nil, err
	}

	k := &EpochKey{Epoch: epoch, db: db}
	didCreate := false
	if err := db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}

		if raw := bkt.Get([]byte(epochKeyName)); raw != nil {
			if len(raw) != 8 {
				return fmt.Errorf("mixkey: corrupt epoch entry")
			}
			storedEpoch := binary.LittleEndian.Uint64(raw)
			if storedEpoch != epoch {
				return ErrLoadCacheFailed
			}

			privRaw := bkt.Get([]byte(privateKeyName))
			if privRaw == nil {
				return fmt.Errorf("mixkey: db missing %s entry", privateKeyName)
			}
			// bkt.Get returns a slice into bbolt's read-only mmap
			// region; memguard.NewBufferFromBytes wipes its input, so
			// it must operate on a private copy, not the mmap itself.
			owned := make([]byte, len(privRaw))
			copy(owned, privRaw)
			buf := memguard.NewBufferFromBytes(owned)
			defer buf.Destroy()
			priv := s.scheme.NewEmptyPrivateKey()
			if err := priv.FromBytes(buf.Bytes()); err != nil {
				return err
			}
			k.Private = priv
			k.Public = priv.Public()
			return nil
		}

		// No key stored yet: generate one and persist it.
		didCreate = true
		priv, err := s.scheme.GenerateKeypair()
		if err != nil {
			return err
		}
		k.Private = priv
		k.Public = priv.Public()

		var epochBytes [8]byte
		binary.LittleEndian.PutUint64(epochBytes[:], epoch)
		if err := bkt.Put([]byte(epochKeyName), epochBytes[:]); err != nil {
			return err
		}
		return bkt.Put([]byte(privateKeyName), priv.Bytes())
	}); err != nil {
		db.Close()
		return nil, err
	}
	if didCreate {
		db.Sync()
	}

	replaySet, err := replay.Open(db, epoch, expectedItems)
	if err != nil {
		db.Close()
		return nil, err
	}
	k.Replay = replaySet

	s.keys[epoch] = k
	return k, nil
}

// Shadow atomically copies the current epoch→EpochKey map into out,
// the worker-local snapshot a crypto worker operates on until its next
// re-shadow (spec §3 MixKeys invariant, §9 Shadow vs shared keys).
func (s *Store) Shadow(out map[uint64]*EpochKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range out {
		delete(out, k)
	}
	for epoch, k := range s.keys {
		out[epoch] = k
	}
}

// Prune closes and drops stores for every epoch outside
// current ± 1 (spec §4.4).
func (s *Store) Prune(current uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for epoch, k := range s.keys {
		if inRetentionWindow(epoch, current) {
			continue
		}
		k.Close()
		k.unlink(s.dataDir)
		delete(s.keys, epoch)
	}
}

func inRetentionWindow(epoch, current uint64) bool {
	if epoch == current {
		return true
	}
	if current > 0 && epoch == current-1 {
		return true
	}
	return epoch == current+1
}

// Close flushes and closes every open epoch store, without deleting
// anything on disk.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for epoch, k := range s.keys {
		k.Close()
		delete(s.keys, epoch)
	}
}

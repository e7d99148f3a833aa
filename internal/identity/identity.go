// Package identity loads or generates this node's long-term link
// keypair, persisted as PEM under data_dir (spec §6 On-disk layout:
// "link.private.pem, link.public.pem — long-term link identity").
//
// Grounded on mixmasala-server/nodekey.go's initLink: deserialize from
// PEM if present, else generate and persist. A key loaded from PEM
// passes through a memguard.LockedBuffer (which wipes the PEM decode
// buffer) that is held until Close; a freshly generated key does not.
// In both cases the working private key lives in ordinary memory and
// is zeroed by its Reset method when the LinkKey is closed.
package identity

import (
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/awnumar/memguard"

	"github.com/katzenpost/katzenpost/minion/internal/nike"
	"github.com/katzenpost/katzenpost/minion/internal/nike/ecdh"
)

const (
	privateKeyFile = "link.private.pem"
	publicKeyFile  = "link.public.pem"
	privateKeyType = "X25519 PRIVATE KEY"
	publicKeyType  = "X25519 PUBLIC KEY"
	fileMode       = 0600
)

// LinkKey is this node's long-term link identity.
type LinkKey struct {
	Private nike.PrivateKey
	Public  nike.PublicKey

	guard *memguard.LockedBuffer
}

// Close zeroes the private key.
func (k *LinkKey) Close() {
	if k.guard != nil {
		k.guard.Destroy()
	}
	k.Private.Reset()
}

// LoadOrGenerate deserializes the link keypair from dataDir if
// present, otherwise generates a fresh one and persists it.
func LoadOrGenerate(dataDir string) (*LinkKey, error) {
	scheme := ecdh.NewEcdhNike(rand.Reader)
	privPath := filepath.Join(dataDir, privateKeyFile)

	if buf, err := os.ReadFile(privPath); err == nil {
		blk, rest := pem.Decode(buf)
		if blk == nil || len(rest) != 0 {
			return nil, fmt.Errorf("identity: trailing garbage after link private key")
		}
		if blk.Type != privateKeyType {
			return nil, fmt.Errorf("identity: invalid PEM type %q", blk.Type)
		}
		guard := memguard.NewBufferFromBytes(blk.Bytes)

		priv := scheme.NewEmptyPrivateKey()
		if err := priv.FromBytes(guard.Bytes()); err != nil {
			guard.Destroy()
			return nil, err
		}
		return &LinkKey{Private: priv, Public: priv.Public(), guard: guard}, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	priv, err := scheme.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	pub := priv.Public()

	if err := writePEM(privPath, privateKeyType, priv.Bytes(), fileMode); err != nil {
		return nil, err
	}
	if err := writePEM(filepath.Join(dataDir, publicKeyFile), publicKeyType, pub.Bytes(), 0644); err != nil {
		return nil, err
	}

	return &LinkKey{Private: priv, Public: pub}, nil
}

func writePEM(path, blockType string, raw []byte, mode os.FileMode) error {
	blk := &pem.Block{Type: blockType, Bytes: raw}
	return os.WriteFile(path, pem.EncodeToMemory(blk), mode)
}

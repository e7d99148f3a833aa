// Package ecdh implements the nike.Scheme interface over X25519,
// grounded on the teacher's core/crypto/nike/ecdh package (referenced
// as ecdh.NewEcdhNike(rand.Reader) by core/sphinx's test suite and by
// core/crypto/nike/hybrid.go's hybrid scheme composition).
package ecdh

import (
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/katzenpost/katzenpost/minion/internal/nike"
)

const (
	publicKeySize  = 32
	privateKeySize = 32
)

var errInvalidKeySize = errors.New("ecdh: invalid key size")

type scheme struct {
	rand io.Reader
}

// NewEcdhNike returns the X25519-backed nike.Scheme, reading fresh
// keys from rng.
func NewEcdhNike(rng io.Reader) nike.Scheme {
	return &scheme{rand: rng}
}

func (s *scheme) Name() string          { return "X25519" }
func (s *scheme) PublicKeySize() int    { return publicKeySize }
func (s *scheme) PrivateKeySize() int   { return privateKeySize }

func (s *scheme) GenerateKeypair() (nike.PrivateKey, error) {
	var raw [privateKeySize]byte
	if _, err := io.ReadFull(s.rand, raw[:]); err != nil {
		return nil, err
	}
	// Clamp per RFC 7748.
	raw[0] &= 248
	raw[31] &= 127
	raw[31] |= 64
	priv := &privateKey{raw: raw}
	return priv, nil
}

func (s *scheme) NewEmptyPublicKey() nike.PublicKey {
	return &publicKey{}
}

func (s *scheme) NewEmptyPrivateKey() nike.PrivateKey {
	return &privateKey{}
}

type privateKey struct {
	raw [privateKeySize]byte
}

func (p *privateKey) Bytes() []byte {
	b := make([]byte, privateKeySize)
	copy(b, p.raw[:])
	return b
}

func (p *privateKey) FromBytes(b []byte) error {
	if len(b) != privateKeySize {
		return errInvalidKeySize
	}
	copy(p.raw[:], b)
	return nil
}

func (p *privateKey) Reset() {
	for i := range p.raw {
		p.raw[i] = 0
	}
}

func (p *privateKey) Public() nike.PublicKey {
	pub, err := curve25519.X25519(p.raw[:], curve25519.Basepoint)
	if err != nil {
		panic("ecdh: failed to derive public key: " + err.Error())
	}
	pk := &publicKey{}
	copy(pk.raw[:], pub)
	return pk
}

// DeriveSecret computes the shared secret between priv and pub, the
// operation the opaque Sphinx unwrap primitive performs internally
// against each candidate epoch's private key.
func DeriveSecret(priv *privateKey, pub *publicKey) ([]byte, error) {
	return curve25519.X25519(priv.raw[:], pub.raw[:])
}

type publicKey struct {
	raw [publicKeySize]byte
}

func (p *publicKey) Bytes() []byte {
	b := make([]byte, publicKeySize)
	copy(b, p.raw[:])
	return b
}

func (p *publicKey) FromBytes(b []byte) error {
	if len(b) != publicKeySize {
		return errInvalidKeySize
	}
	copy(p.raw[:], b)
	return nil
}

func (p *publicKey) Reset() {
	for i := range p.raw {
		p.raw[i] = 0
	}
}

// ConstantTimeEqual reports whether two public keys are identical,
// without leaking timing information.
func ConstantTimeEqual(a, b nike.PublicKey) bool {
	return subtle.ConstantTimeCompare(a.Bytes(), b.Bytes()) == 1
}

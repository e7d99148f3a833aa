// Package nike defines the non-interactive key exchange abstraction
// used for mix key material, mirroring the shape of
// github.com/katzenpost/katzenpost/core/crypto/nike (visible at its call
// sites in core/crypto/nike/hybrid and core/sphinx's test suite:
// ecdh.NewEcdhNike(rand.Reader) returning a Scheme).
//
// The Sphinx unwrap primitive itself is consumed as an opaque pure
// function per this node's scope; this package only supplies the key
// material the Mix-Key Store generates, persists, and hands to that
// primitive.
package nike

// PublicKey is a NIKE public key.
type PublicKey interface {
	Bytes() []byte
	FromBytes([]byte) error
	Reset()
}

// PrivateKey is a NIKE private key.
type PrivateKey interface {
	Bytes() []byte
	FromBytes([]byte) error
	Reset()
	Public() PublicKey
}

// Scheme is a NIKE key exchange scheme.
type Scheme interface {
	Name() string
	PublicKeySize() int
	PrivateKeySize() int
	GenerateKeypair() (PrivateKey, error)
	NewEmptyPublicKey() PublicKey
	NewEmptyPrivateKey() PrivateKey
}

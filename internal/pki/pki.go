// Package pki defines the narrow query interface this node uses
// against the PKI client collaborator (spec §1 OUT OF SCOPE: "the PKI
// client that publishes/learns peer identities and consensus — only
// its query interface is used"). Nothing here implements the voting
// protocol or consensus document format; Client is the seam the
// dispatcher's peer-authenticator and the reader's GetConsensus
// handler are built against.
//
// Descriptor is a trimmed descendant of the teacher's
// core/pki/descriptor.go MixDescriptor: this node only ever reads a
// peer's identity key, link key, routable addresses and per-epoch
// Sphinx keys, never constructs or signs one, so the cert/sign/wire
// machinery that type carries is dropped.
package pki

import (
	"context"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// ErrNoDocument is returned by Client.GetConsensus when no document
// is available for the requested epoch (spec §4.7 GetConsensus).
var ErrNoDocument = errors.New("pki: no consensus document for epoch")

// Descriptor is the subset of a mix or provider's published identity
// this node ever needs to read back: enough to authenticate a link
// peer and to resolve a next-hop routing command to a network
// address.
type Descriptor struct {
	Name string `cbor:"name"`

	// IdentityKey and LinkKey are the peer's raw public key bytes;
	// their concrete scheme is a matter for the link handshake library
	// and the Sphinx unwrap primitive, both opaque collaborators here.
	IdentityKey []byte `cbor:"identity_key"`
	LinkKey     []byte `cbor:"link_key"`

	// MixKeys maps epoch to that epoch's Sphinx public key, mirroring
	// the teacher's MixDescriptor.MixKeys.
	MixKeys map[uint64][]byte `cbor:"mix_keys"`

	// Addresses maps transport name ("tcp", "tcp6") to dial strings.
	Addresses map[string][]string `cbor:"addresses"`

	Provider bool `cbor:"provider"`
}

// Marshal/Unmarshal round-trip a Descriptor using the same CBOR
// encoding as the command frames the reader decodes off the link
// session (spec DOMAIN STACK: fxamacker/cbor).
func (d *Descriptor) Marshal() ([]byte, error)   { return cbor.Marshal(d) }
func (d *Descriptor) Unmarshal(b []byte) error   { return cbor.Unmarshal(b, d) }

// Client is the query interface this node uses against the PKI
// collaborator. A concrete implementation (nonvoting single-authority,
// or voting quorum per config/config.go's pki.nonvoting/pki.voting
// sections) lives outside this module's scope; production callers are
// expected to supply one satisfying this interface.
type Client interface {
	// IsKnownClientKey reports whether pub is a currently valid client
	// link public key, per the PKI's current document (spec §4.5
	// dispatcher peer-authenticator).
	IsKnownClientKey(ctx context.Context, pub []byte) (bool, error)

	// IsKnownMixKey reports whether pub is a currently valid peer mix
	// link public key.
	IsKnownMixKey(ctx context.Context, pub []byte) (bool, error)

	// Descriptor resolves a node identity key to its current
	// Descriptor, used to turn a NextHopCommand's node ID into a
	// dial address for outbound forwarding.
	Descriptor(ctx context.Context, identityKey []byte, epoch uint64) (*Descriptor, error)

	// GetConsensus returns the raw consensus document bytes for
	// epoch, or ErrNoDocument (spec §4.7 GetConsensus command).
	GetConsensus(ctx context.Context, epoch uint64) ([]byte, error)
}

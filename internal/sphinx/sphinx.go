// Package sphinx defines the seam against the Sphinx unwrap primitive
// (spec §1 OUT OF SCOPE: "consumed as a pure function"). Nothing here
// implements onion decryption; Unwrapper is the interface the crypto
// worker pool is built against, grounded on the call shape described
// by spec §4.2/§4.8 and by the teacher's now-deleted
// core/sphinx/sphinx_ecdh_test.go (ecdh.NewEcdhNike keypair feeding a
// sphinx.Unwrap(key, packet) call).
package sphinx

import (
	"errors"

	"github.com/katzenpost/katzenpost/minion/internal/nike"
)

// ErrUnwrapFailed is returned by an Unwrapper when the ciphertext does
// not decrypt under the supplied key (wrong epoch, corruption, or a
// genuinely malicious packet). The crypto worker cannot distinguish
// these causes and must not try to (spec §4.8 step 3).
var ErrUnwrapFailed = errors.New("sphinx: unwrap failed")

// CommandSet is the routing metadata a successful unwrap yields,
// mirroring internal/packet's command types without importing that
// package — Unwrap is a pure transform with no knowledge of the
// Packet it will be attached to.
type CommandSet struct {
	NextHopID      []byte
	Delay          int64 // nanoseconds
	RecipientID    []byte
	SurbReplyID    []byte
	HasNextHop     bool
	HasDelay       bool
	HasRecipient   bool
	HasSurbReply   bool
}

// Unwrapper strips one onion layer from raw using priv, mutating raw
// in place (spec §9: "the primitive consumes and mutates its input
// buffer"). On success it returns the decrypted payload, the
// fixed-width replay tag derived from the packet's shared secret, and
// the decoded routing command set.
type Unwrapper interface {
	Unwrap(priv nike.PrivateKey, raw []byte) (payload []byte, replayTag []byte, cmds *CommandSet, err error)
}

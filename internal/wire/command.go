// Package wire defines the command frames the Session Reader decodes
// off a link Session (spec §4.7, §6 "Wire protocol"), and the narrow
// Session interface the dispatcher and reader consume. The concrete
// handshake cryptography that produces a Session is an opaque,
// out-of-scope collaborator (spec §1) — this package only defines the
// seam, never a handshake implementation.
//
// The CBOR tag-set pattern here is grounded on
// server/cborplugin/client.go's Request/Response tagging (reserved,
// currently-unassigned IANA CBOR tag numbers, one per command type),
// generalized from that file's two-command kaetzchen protocol to this
// node's five link-layer commands.
package wire

import (
	"errors"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnknownCommand is returned by Decode when the frame's CBOR tag
// does not match any registered command. Per spec §6, unknown commands
// are skipped rather than treated as fatal.
var ErrUnknownCommand = errors.New("wire: unknown command tag")

// Command is any of the five frames the link session carries (spec
// §6): NoOp, SendPacket, RetrieveMessage, GetConsensus, Disconnect.
type Command interface {
	Marshal() ([]byte, error)
}

var tagSet = cbor.NewTagSet()

func init() {
	opts := cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired}
	must(tagSet.Add(opts, reflect.TypeOf(NoOp{}), 1420))
	must(tagSet.Add(opts, reflect.TypeOf(SendPacket{}), 1421))
	must(tagSet.Add(opts, reflect.TypeOf(RetrieveMessage{}), 1422))
	must(tagSet.Add(opts, reflect.TypeOf(GetConsensus{}), 1423))
	must(tagSet.Add(opts, reflect.TypeOf(Disconnect{}), 1424))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

var (
	encMode, _ = cbor.EncOptions{}.EncModeWithTags(tagSet)
	decMode, _ = cbor.DecOptions{}.DecModeWithTags(tagSet)
)

// NoOp carries no data; the reader drops it unconditionally (spec
// §4.7).
type NoOp struct{}

func (c *NoOp) Marshal() ([]byte, error) { return encMode.Marshal(c) }

// SendPacket carries one Sphinx ciphertext for the reader to turn into
// a Packet and enqueue to the crypto pool (spec §4.7).
type SendPacket struct {
	SphinxPacket []byte
}

func (c *SendPacket) Marshal() ([]byte, error) { return encMode.Marshal(c) }

// RetrieveMessage requests delivery of a queued message by sequence
// number; handled only on provider sessions authenticated as a client
// (spec §4.7), handed off to the out-of-scope mailbox collaborator.
type RetrieveMessage struct {
	Sequence uint32
}

func (c *RetrieveMessage) Marshal() ([]byte, error) { return encMode.Marshal(c) }

// GetConsensus requests the consensus document for an epoch, handed
// off to the out-of-scope PKI collaborator (spec §4.7).
type GetConsensus struct {
	Epoch uint64
}

func (c *GetConsensus) Marshal() ([]byte, error) { return encMode.Marshal(c) }

// Disconnect asks the reader to close the session and exit its loop
// (spec §4.7).
type Disconnect struct{}

func (c *Disconnect) Marshal() ([]byte, error) { return encMode.Marshal(c) }

// Decode inspects b's CBOR tag and returns the matching Command.
// Per spec §6, a tag outside the registered set is reported via
// ErrUnknownCommand so the caller can skip the frame rather than treat
// it as a protocol error.
func Decode(b []byte) (Command, error) {
	var raw cbor.RawTag
	if err := decMode.Unmarshal(b, &raw); err != nil {
		return nil, ErrUnknownCommand
	}

	switch raw.Number {
	case 1420:
		c := &NoOp{}
		return c, decMode.Unmarshal(b, c)
	case 1421:
		c := &SendPacket{}
		return c, decMode.Unmarshal(b, c)
	case 1422:
		c := &RetrieveMessage{}
		return c, decMode.Unmarshal(b, c)
	case 1423:
		c := &GetConsensus{}
		return c, decMode.Unmarshal(b, c)
	case 1424:
		c := &Disconnect{}
		return c, decMode.Unmarshal(b, c)
	default:
		return nil, ErrUnknownCommand
	}
}

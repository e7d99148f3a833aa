// Package packet implements the fixed-size Sphinx ciphertext buffer and
// the routing-command metadata attached to it after a successful
// unwrap (spec §3 Packet, §4.2).
//
// Grounded on mixmasala-server/provider.go's packet field usage
// (pkt.recipient, pkt.nodeDelay, pkt.surbReply, pkt.mustForward,
// pkt.dispose()) and _examples/original_source/src/packet.rs.
package packet

import (
	"errors"
	"time"
)

// ErrWrongSize is returned by New when the supplied buffer does not
// match SphinxPacketLength (spec §4.2, §7).
var ErrWrongSize = errors.New("packet: ciphertext has the wrong size")

// NextHopCommand requests forwarding to another mix.
type NextHopCommand struct {
	ID [NodeIDLength]byte
}

// DelayCommand requests the mix hold the packet before continuing.
type DelayCommand struct {
	Delay time.Duration
}

// RecipientCommand names the user mailbox this packet is destined for.
type RecipientCommand struct {
	ID [RecipientIDLength]byte
}

// SurbReplyCommand names the single-use reply block context a
// decrypted SURB payload belongs to.
type SurbReplyCommand struct {
	ID [SurbIDLength]byte
}

// Class is the result of classifying a Packet's RoutingCommandSet
// against the stable predicates of spec §3.
type Class int

const (
	// ClassInvalid is any command combination not matching one of the
	// four recognized classes.
	ClassInvalid Class = iota
	// ClassForward is "forward to next hop": next-hop + delay, no
	// recipient, no surb-reply.
	ClassForward
	// ClassToUser is "deliver to user (normal)": delay + recipient, no
	// next-hop, no surb-reply.
	ClassToUser
	// ClassToUserUnreliable is "deliver to user (unreliable)":
	// recipient only, no next-hop, no delay, no surb-reply.
	ClassToUserUnreliable
	// ClassSurbReply is "SURB reply": recipient + surb-reply, no
	// next-hop, no delay.
	ClassSurbReply
)

// Packet is the fixed-size ciphertext buffer together with the
// metadata filled in by the crypto worker after a successful unwrap.
// It is a move-only value between channels: there is no shared
// aliasing once it has been handed off.
type Packet struct {
	// ID is a process-local identifier, useful only for log
	// correlation.
	ID uint64

	// Raw is the Sphinx ciphertext. The unwrap primitive mutates its
	// input in place, so each candidate-epoch attempt runs on a copy
	// (spec §9); after a successful unwrap the crypto worker copies the
	// unwrapped buffer back into Raw, which is what gets forwarded.
	Raw []byte

	// RecvAt is the wall-clock time this Packet was constructed,
	// stamped at session read (spec §3).
	RecvAt time.Time

	// Payload is set exactly once, by the crypto worker, after a
	// successful unwrap.
	Payload []byte

	NextHop   *NextHopCommand
	Delay     *DelayCommand
	Recipient *RecipientCommand
	SurbReply *SurbReplyCommand

	// ReplayTag is the fixed-width value the unwrap primitive derives
	// for replay detection, nil if the command set carries no
	// forwardable payload needing a tag.
	ReplayTag []byte

	// MustForward is set by the Session Reader when the originating
	// link session was authenticated as a client (spec §3, §4.7).
	MustForward bool

	// MustTerminate is set by the Session Reader when this node is a
	// provider and the originating session was authenticated as a peer
	// mix (spec §3, §4.7).
	MustTerminate bool

	commandsSet bool
	payloadSet  bool
}

// New validates buf's length and returns a fresh Packet with RecvAt
// stamped to the current wall-clock time.
func New(id uint64, buf []byte) (*Packet, error) {
	if len(buf) != SphinxPacketLength {
		return nil, ErrWrongSize
	}
	raw := make([]byte, SphinxPacketLength)
	copy(raw, buf)
	return &Packet{
		ID:     id,
		Raw:    raw,
		RecvAt: time.Now(),
	}, nil
}

// CopyRaw returns a fresh copy of the packet's ciphertext, for use as
// the input to one candidate-epoch unwrap attempt, so that the
// primitive's in-place mutation never reaches Raw and every attempt
// sees the original ciphertext (spec §9).
func (p *Packet) CopyRaw() []byte {
	cp := make([]byte, len(p.Raw))
	copy(cp, p.Raw)
	return cp
}

// SetPayload records the cleartext payload produced by a successful
// unwrap. Must be called at most once.
func (p *Packet) SetPayload(payload []byte) {
	if p.payloadSet {
		panic("packet: SetPayload called more than once")
	}
	p.Payload = payload
	p.payloadSet = true
}

// SetCommands records the decoded routing commands produced by a
// successful unwrap. Must be called at most once.
func (p *Packet) SetCommands(next *NextHopCommand, delay *DelayCommand, recipient *RecipientCommand, surb *SurbReplyCommand) {
	if p.commandsSet {
		panic("packet: SetCommands called more than once")
	}
	p.NextHop = next
	p.Delay = delay
	p.Recipient = recipient
	p.SurbReply = surb
	p.commandsSet = true
}

// Classify implements the stable predicates of spec §3.
func (p *Packet) Classify() Class {
	switch {
	case p.NextHop != nil && p.Delay != nil && p.Recipient == nil && p.SurbReply == nil:
		return ClassForward
	case p.NextHop == nil && p.Delay != nil && p.Recipient != nil && p.SurbReply == nil:
		return ClassToUser
	case p.NextHop == nil && p.Delay == nil && p.Recipient != nil && p.SurbReply == nil:
		return ClassToUserUnreliable
	case p.NextHop == nil && p.Delay == nil && p.Recipient != nil && p.SurbReply != nil:
		return ClassSurbReply
	default:
		return ClassInvalid
	}
}

// Dispose zeroes the ciphertext and payload so the packet's contents
// don't linger in memory past the point it is dropped or forwarded.
func (p *Packet) Dispose() {
	for i := range p.Raw {
		p.Raw[i] = 0
	}
	for i := range p.Payload {
		p.Payload[i] = 0
	}
}

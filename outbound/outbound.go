// Package outbound implements the default crypto.Router: the sink a
// crypto worker hands a classified Packet to once it leaves the
// worker pool (spec §4.8 step 6's "emit to the outbound scheduler" /
// "hand off to provider user-delivery" destinations).
//
// Grounded on mixmasala-server/server.go's outgoingCh pattern (a
// single goroutine owning outbound link sessions, fed by a channel)
// and spec §4.7's "separate channels to an outbound writer component
// that is itself single-owner over a sending half".
package outbound

import (
	"context"
	"net"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/katzenpost/minion/internal/packet"
	"github.com/katzenpost/katzenpost/minion/internal/pki"
	"github.com/katzenpost/katzenpost/minion/internal/wire"
	"github.com/katzenpost/katzenpost/minion/internal/worker"
	"github.com/katzenpost/katzenpost/minion/provider"
)

// Scheduler dials the next hop after a packet's remaining delay
// elapses and forwards it as a SendPacket command. Each forwarded
// packet gets its own connection and link session, owned by the one
// goroutine sending it; sessions are not shared or reused between
// packets, even to the same next hop.
type Scheduler struct {
	worker.Worker

	log       *logging.Logger
	pki       pki.Client
	handshake wire.HandshakeFunc
	cfg       *wire.SessionConfig
	mailbox   provider.Mailbox
	epoch     func() uint64

	pending chan *scheduledPacket
}

type scheduledPacket struct {
	pkt   *packet.Packet
	delay time.Duration
}

// New constructs a Scheduler. currentEpoch supplies the epoch used to
// resolve a next-hop node ID to a Descriptor.
func New(log *logging.Logger, pkiClient pki.Client, handshake wire.HandshakeFunc, cfg *wire.SessionConfig, mailbox provider.Mailbox, currentEpoch func() uint64) *Scheduler {
	s := &Scheduler{
		log:       log,
		pki:       pkiClient,
		handshake: handshake,
		cfg:       cfg,
		mailbox:   mailbox,
		epoch:     currentEpoch,
		pending:   make(chan *scheduledPacket, 1024),
	}
	s.Go(s.worker)
	return s
}

func (s *Scheduler) worker() {
	for {
		select {
		case <-s.HaltCh():
			return
		case sp := <-s.pending:
			s.Go(func() { s.waitAndSend(sp) })
		}
	}
}

// waitAndSend owns sp.pkt from the moment it is called: Forward has
// already handed off ownership (spec §3 "move-only... no shared
// aliasing"), so every return path here disposes it exactly once,
// only after the last read of its ciphertext.
func (s *Scheduler) waitAndSend(sp *scheduledPacket) {
	defer sp.pkt.Dispose()

	timer := time.NewTimer(sp.delay)
	defer timer.Stop()
	select {
	case <-s.HaltCh():
		return
	case <-timer.C:
	}

	if sp.pkt.NextHop == nil {
		s.log.Noticef("outbound: forward packet %d has no next-hop command", sp.pkt.ID)
		return
	}
	desc, err := s.pki.Descriptor(context.Background(), sp.pkt.NextHop.ID[:], s.epoch())
	if err != nil {
		s.log.Noticef("outbound: next-hop lookup failed for packet %d: %s", sp.pkt.ID, err)
		return
	}
	addrs := desc.Addresses["tcp"]
	if len(addrs) == 0 {
		s.log.Noticef("outbound: next-hop %x has no tcp address", sp.pkt.NextHop.ID)
		return
	}

	conn, err := net.DialTimeout("tcp", addrs[0], wire.HandshakeTimeout)
	if err != nil {
		s.log.Noticef("outbound: dial %s failed: %s", addrs[0], err)
		return
	}
	defer conn.Close()

	sess, err := s.handshake(s.cfg, true, conn)
	if err != nil {
		s.log.Noticef("outbound: handshake with %s failed: %s", addrs[0], err)
		return
	}
	defer sess.Close()

	if err := sess.SendCommand(&wire.SendPacket{SphinxPacket: sp.pkt.Raw}); err != nil {
		s.log.Noticef("outbound: send to %s failed: %s", addrs[0], err)
	}
}

// Forward implements crypto.Router. If the Scheduler has halted, pkt
// is disposed here and errHalted is returned. Packets still queued in
// pending when the Scheduler halts are not disposed.
func (s *Scheduler) Forward(pkt *packet.Packet, remainingDelay time.Duration) error {
	select {
	case s.pending <- &scheduledPacket{pkt: pkt, delay: remainingDelay}:
		return nil
	case <-s.HaltCh():
		pkt.Dispose()
		return errHalted
	}
}

// DecoyRespond implements crypto.Router for a non-provider node's SURB
// reply: this node has no local application to deliver to, so the
// reply is simply accounted for and discarded. pkt is disposed here,
// synchronously, since nothing further needs its contents.
func (s *Scheduler) DecoyRespond(pkt *packet.Packet) error {
	defer pkt.Dispose()
	s.log.Debugf("outbound: discarding surb-reply %d at non-provider node", pkt.ID)
	return nil
}

// Deliver implements crypto.Router for a provider-terminated packet.
// pkt is disposed once mailbox.Store returns, whether or not it
// errors: Store is expected to have finished with pkt.Payload by the
// time it returns, synchronously, per the Mailbox contract.
func (s *Scheduler) Deliver(pkt *packet.Packet) error {
	defer pkt.Dispose()
	if pkt.Recipient == nil {
		return errNoRecipient
	}
	return s.mailbox.Store(context.Background(), pkt.Recipient.ID, pkt.Payload)
}

var (
	errHalted      = schedulerError("outbound: scheduler halted")
	errNoRecipient = schedulerError("outbound: packet classified for delivery has no recipient")
)

type schedulerError string

func (e schedulerError) Error() string { return string(e) }

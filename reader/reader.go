// Package reader implements the Session Reader (spec §4.7): a
// per-session command loop that drains a Session, classifies each
// frame, and either drops it, enqueues a Packet to the crypto pool, or
// hands it off to the PKI/mailbox collaborators.
//
// Grounded on mixmasala-server/server.go's worker-per-connection
// pattern and server/cborplugin/client.go's ReadChan/decode loop
// (itself generalized here from a single plugin protocol to the full
// link command table of spec §6).
package reader

import (
	"context"
	"sync/atomic"

	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/katzenpost/minion/internal/packet"
	"github.com/katzenpost/katzenpost/minion/internal/pki"
	"github.com/katzenpost/katzenpost/minion/internal/wire"
	"github.com/katzenpost/katzenpost/minion/provider"
)

var packetIDCounter uint64

func nextPacketID() uint64 {
	return atomic.AddUint64(&packetIDCounter, 1)
}

// Reader drains one Session for its lifetime.
type Reader struct {
	log        *logging.Logger
	session    wire.Session
	isProvider bool

	// packets is the In() side of the supervisor's shared
	// channels.InfiniteChannel, the unbounded packet queue feeding the
	// crypto pool (SPEC_FULL.md DOMAIN STACK: gopkg.in/eapache/channels.v1).
	packets chan<- interface{}
	mailbox provider.Mailbox
	pki     pki.Client
}

// New constructs a Reader bound to session. isProvider is this node's
// static role (spec §4.7 dispatch table has separate mix/provider
// columns).
func New(log *logging.Logger, session wire.Session, isProvider bool, packets chan<- interface{}, mailbox provider.Mailbox, pkiClient pki.Client) *Reader {
	return &Reader{
		log:        log,
		session:    session,
		isProvider: isProvider,
		packets:    packets,
		mailbox:    mailbox,
		pki:        pkiClient,
	}
}

// Run blocks for the lifetime of the session, dispatching commands
// per spec §4.7's table. On any RecvCommand error the session is
// closed and Run returns; enqueue failure on the crypto channel is
// treated as fatal to the whole pipeline, per spec §4.7, and is
// returned to the caller (the supervisor) rather than swallowed.
func (r *Reader) Run() error {
	defer r.session.Close()

	fromClient := r.session.FromClient()
	for {
		cmd, err := r.session.RecvCommand()
		if err != nil {
			r.log.Debugf("reader: session closed: %s", err)
			return nil
		}

		switch c := cmd.(type) {
		case *wire.NoOp:
			continue

		case *wire.SendPacket:
			pkt, err := packet.New(nextPacketID(), c.SphinxPacket)
			if err != nil {
				r.log.Noticef("reader: dropping malformed SendPacket: %s", err)
				continue
			}
			pkt.MustForward = fromClient
			pkt.MustTerminate = r.isProvider && !fromClient

			if !r.enqueue(pkt) {
				// Fatal per spec §4.7: "Enqueue failure on the crypto
				// channel is fatal to the reader (surrounding pipeline
				// is torn down)."
				return errEnqueueFailed
			}

		case *wire.RetrieveMessage:
			if !r.isProvider || !fromClient {
				continue // reject, per spec §4.7 mix column / peer-session row
			}
			// Handed off to the out-of-scope mailbox collaborator (spec
			// §1, §4.7); how the reply reaches the peer is that
			// collaborator's concern, not this node's wire protocol.
			creds := r.session.PeerCredentials()
			if _, err := r.mailbox.Retrieve(context.Background(), creds.PublicKey, c.Sequence); err != nil {
				r.log.Debugf("reader: RetrieveMessage %d failed: %s", c.Sequence, err)
			}

		case *wire.GetConsensus:
			if !r.isProvider || !fromClient {
				continue
			}
			// Handed off to the out-of-scope PKI collaborator (spec §1,
			// §4.7).
			if _, err := r.pki.GetConsensus(context.Background(), c.Epoch); err != nil {
				r.log.Debugf("reader: GetConsensus %d failed: %s", c.Epoch, err)
			}

		case *wire.Disconnect:
			return nil

		default:
			// Unknown commands are skipped (spec §6).
			continue
		}
	}
}

// enqueue sends pkt on the shared InfiniteChannel, reporting false if
// the channel has been torn down (a send on its closed underlying
// channel panics, per the channels.v1 contract) rather than letting
// the panic propagate.
func (r *Reader) enqueue(pkt *packet.Packet) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	r.packets <- pkt
	return true
}

var errEnqueueFailed = readerError("reader: crypto worker channel enqueue failed")

type readerError string

func (e readerError) Error() string { return string(e) }

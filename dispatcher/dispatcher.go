// Package dispatcher implements the Link Session Dispatcher (spec
// §4.6): drains raw connections from the Connection Fount, performs
// the authenticated link handshake, and emits completed Sessions to
// the Session Reader stage. The dispatcher is stateless across
// connections — a failed handshake leaves no trace beyond a log line.
//
// Grounded on mixmasala-server/server.go's worker loop structure
// (one goroutine draining a channel, Go()-spawned, Halt()-stopped) and
// client2/connection.go's handshake call sequence
// (wire.NewSession → w.Initialize(conn) → done), generalized from a
// single-peer client dial to a per-connection server-side accept loop.
package dispatcher

import (
	"net"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/katzenpost/minion/internal/worker"
	"github.com/katzenpost/katzenpost/minion/internal/wire"
)

// Dispatcher performs handshakes for accepted connections and emits
// the resulting Sessions.
type Dispatcher struct {
	worker.Worker

	log       *logging.Logger
	conns     <-chan net.Conn
	sessions  chan wire.Session
	handshake wire.HandshakeFunc
	cfg       *wire.SessionConfig
}

// New starts the dispatcher's drain loop against conns, handing each
// accepted connection to handshake for the server side of the link
// protocol.
func New(log *logging.Logger, conns <-chan net.Conn, handshake wire.HandshakeFunc, cfg *wire.SessionConfig, backlog int) *Dispatcher {
	d := &Dispatcher{
		log:       log,
		conns:     conns,
		sessions:  make(chan wire.Session, backlog),
		handshake: handshake,
		cfg:       cfg,
	}
	d.Go(d.worker)
	return d
}

// Sessions is the channel of live Sessions consumed by whatever spawns
// Session Reader goroutines (spec §4.6, §4.7).
func (d *Dispatcher) Sessions() <-chan wire.Session {
	return d.sessions
}

func (d *Dispatcher) worker() {
	for {
		select {
		case <-d.HaltCh():
			return
		case conn, ok := <-d.conns:
			if !ok {
				return
			}
			d.Go(func() { d.handleConn(conn) })
		}
	}
}

// handleConn performs one handshake attempt and either forwards the
// resulting Session or logs and drops the connection (spec §4.6:
// "Handshake failures (timeout, auth rejection, protocol error) are
// logged and the connection dropped without retry").
func (d *Dispatcher) handleConn(conn net.Conn) {
	conn.SetDeadline(time.Now().Add(wire.HandshakeTimeout))

	sess, err := d.handshake(d.cfg, false, conn)
	if err != nil {
		d.log.Noticef("dispatcher: handshake with %s failed: %s", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})

	select {
	case d.sessions <- sess:
	case <-d.HaltCh():
		sess.Close()
	}
}

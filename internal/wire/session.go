package wire

import (
	"io"
	"net"
	"time"
)

// PeerCredentials identifies the far end of a completed handshake:
// its link public key, and nothing else. Grounded on the
// wire.PeerCredentials type referenced by client2/connection.go's
// session setup.
type PeerCredentials struct {
	PublicKey []byte
}

// Authenticator decides whether a peer's credentials are acceptable
// for a given connection, without pre-committing to a single expected
// identity (spec §4.6: "a peer-authenticator that admits either a
// known client public key or a known mix public key according to
// current PKI, and no pre-committed peer identity"). A concrete
// implementation backed by internal/pki.Client is supplied by the
// dispatcher's caller.
type Authenticator interface {
	IsPeerValid(creds *PeerCredentials) (isClient bool, ok bool)
}

// SessionConfig configures a handshake attempt, mirroring the
// wire.SessionConfig fields read by client2/connection.go
// (Geometry is dropped here: this node's Sphinx geometry is fixed at
// compile time via internal/packet.SphinxPacketLength, unlike the
// client which negotiates it).
type SessionConfig struct {
	Authenticator     Authenticator
	AdditionalData    []byte
	AuthenticationKey []byte
	RandomReader      io.Reader
}

// Session is the opaque handle a completed link handshake produces
// (spec §3 Session). The concrete handshake cryptography that
// produces one is an out-of-scope collaborator (spec §1); this
// interface is the seam the dispatcher and reader are built against.
//
// Grounded on the wire.Session method set used by
// client2/connection.go: Initialize(conn), RecvCommand, SendCommand,
// Close, and a ClockSkew accessor dropped here since this node's
// clock-skew handling is the epoch grace period of internal/epochtime,
// not a per-session skew estimate.
type Session interface {
	// Initialize runs the handshake over conn and blocks until it
	// completes or fails.
	Initialize(conn net.Conn) error

	// FromClient reports the stable from_client flag recorded at
	// handshake completion (spec §3 Session).
	FromClient() bool

	// PeerCredentials returns the authenticated peer's credentials.
	PeerCredentials() *PeerCredentials

	// RecvCommand blocks until a command frame arrives or the
	// underlying connection errors.
	RecvCommand() (Command, error)

	// SendCommand writes cmd to the peer.
	SendCommand(cmd Command) error

	Close() error
}

// HandshakeTimeout bounds how long the dispatcher waits for a single
// handshake attempt before treating it as failed (spec §4.6: "Handshake
// failures (timeout, auth rejection, protocol error) are logged and
// the connection dropped without retry").
const HandshakeTimeout = 30 * time.Second

// HandshakeFunc performs a link handshake over conn using cfg, acting
// as the client side of the protocol iff isClient is true, and
// returns the resulting Session. The dispatcher calls exactly one of
// these per accepted connection; a production binary supplies a
// HandshakeFunc backed by the real link-handshake library, out of
// scope here.
type HandshakeFunc func(cfg *SessionConfig, isClient bool, conn net.Conn) (Session, error)

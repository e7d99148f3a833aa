package main

import (
	"context"
	"errors"
	"net"

	"github.com/katzenpost/katzenpost/minion/config"
	"github.com/katzenpost/katzenpost/minion/internal/nike"
	"github.com/katzenpost/katzenpost/minion/internal/packet"
	"github.com/katzenpost/katzenpost/minion/internal/pki"
	"github.com/katzenpost/katzenpost/minion/internal/sphinx"
	"github.com/katzenpost/katzenpost/minion/internal/wire"
	"github.com/katzenpost/katzenpost/minion/supervisor"
)

// newProductionDeps wires this binary's out-of-scope collaborators
// (spec §1: the PKI client, the Sphinx unwrap primitive, the link
// handshake library, and provider mail storage). None of the four is
// implemented by this module — each is a concrete dependency a
// deployment supplies (e.g. github.com/katzenpost/katzenpost's own
// pki/sphinx/wire packages, or a nyquist-backed link handshake).
// This file is the single place those real implementations get
// plugged in; until then it fails closed rather than silently running
// with no replay protection or routing.
func newProductionDeps(cfg *config.Config) (*supervisor.Deps, error) {
	return &supervisor.Deps{
		PKI:       &unconfiguredPKI{},
		Unwrap:    &unconfiguredUnwrapper{},
		Handshake: unconfiguredHandshake,
		Mailbox:   &unconfiguredMailbox{},
	}, nil
}

var errNotConfigured = errors.New("minion: no production collaborator configured for this build")

type unconfiguredPKI struct{}

func (*unconfiguredPKI) IsKnownClientKey(context.Context, []byte) (bool, error) {
	return false, errNotConfigured
}
func (*unconfiguredPKI) IsKnownMixKey(context.Context, []byte) (bool, error) {
	return false, errNotConfigured
}
func (*unconfiguredPKI) Descriptor(context.Context, []byte, uint64) (*pki.Descriptor, error) {
	return nil, errNotConfigured
}
func (*unconfiguredPKI) GetConsensus(context.Context, uint64) ([]byte, error) {
	return nil, pki.ErrNoDocument
}

type unconfiguredUnwrapper struct{}

func (*unconfiguredUnwrapper) Unwrap(nike.PrivateKey, []byte) ([]byte, []byte, *sphinx.CommandSet, error) {
	return nil, nil, nil, errNotConfigured
}

func unconfiguredHandshake(*wire.SessionConfig, bool, net.Conn) (wire.Session, error) {
	return nil, errNotConfigured
}

type unconfiguredMailbox struct{}

func (*unconfiguredMailbox) Retrieve(context.Context, []byte, uint32) ([]byte, error) {
	return nil, errNotConfigured
}
func (*unconfiguredMailbox) Store(context.Context, [packet.RecipientIDLength]byte, []byte) error {
	return errNotConfigured
}

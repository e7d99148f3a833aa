package pki

import (
	"context"
	"time"

	"github.com/katzenpost/katzenpost/minion/internal/wire"
)

// authenticateTimeout bounds a single IsKnownClientKey/IsKnownMixKey
// round trip so a slow or wedged PKI client can never stall a
// handshake past wire.HandshakeTimeout.
const authenticateTimeout = 10 * time.Second

// Authenticator adapts a Client into the wire.Authenticator the
// dispatcher's handshake needs (spec §4.6: "a peer-authenticator that
// admits either a known client public key or a known mix public key
// according to current PKI, and no pre-committed peer identity").
type Authenticator struct {
	Client Client
}

// NewAuthenticator returns a wire.Authenticator backed by client.
func NewAuthenticator(client Client) *Authenticator {
	return &Authenticator{Client: client}
}

// IsPeerValid implements wire.Authenticator. A peer is admitted as a
// client if its key is a known client link key, otherwise as a mix if
// its key is a known mix link key; it is rejected if neither query
// succeeds, including when the PKI client itself errors (fail closed).
func (a *Authenticator) IsPeerValid(creds *wire.PeerCredentials) (isClient bool, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), authenticateTimeout)
	defer cancel()

	if known, err := a.Client.IsKnownClientKey(ctx, creds.PublicKey); err == nil && known {
		return true, true
	}
	if known, err := a.Client.IsKnownMixKey(ctx, creds.PublicKey); err == nil && known {
		return false, true
	}
	return false, false
}

// Package provider defines the narrow enqueue interfaces the Session
// Reader hands RetrieveMessage and routed user-deliverable packets off
// to (spec §1 OUT OF SCOPE: "provider-side user mail storage/delivery
// — only its enqueue interface is used"). No mailbox implementation
// lives here; production callers supply one satisfying these
// interfaces, grounded on mixmasala-server/spool/spool.go and
// mixmasala-server/userdb/boltuserdb/boltuserdb.go's store/retrieve
// shape without adopting their storage engine.
package provider

import (
	"context"

	"github.com/katzenpost/katzenpost/minion/internal/packet"
)

// Mailbox is the out-of-scope collaborator a provider session's
// RetrieveMessage command is handed off to (spec §4.7).
type Mailbox interface {
	// Retrieve returns the queued message at sequence for the peer
	// identified by recipient, or an error if none is queued.
	Retrieve(ctx context.Context, recipient []byte, sequence uint32) ([]byte, error)

	// Store enqueues a delivered packet's payload for later retrieval,
	// the sink for packets classified ClassToUser/ClassToUserUnreliable/
	// ClassSurbReply once they terminate at this provider (spec §4.8).
	Store(ctx context.Context, recipient [packet.RecipientIDLength]byte, payload []byte) error
}

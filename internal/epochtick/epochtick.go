// Package epochtick implements the supervisor's epoch-update broadcast
// (spec §4.9: "After ensure/prune, the supervisor broadcasts an
// epoch-update tick on the crypto workers' update channels; each
// worker re-shadows"). A single chan struct{} send only wakes one
// receiver, which cannot express "broadcast to M workers"; Broadcaster
// instead closes the current channel (waking every worker blocked on
// it) and atomically swaps in a fresh one for the next tick.
package epochtick

import "sync/atomic"

// Broadcaster holds the current tick channel. Workers call Chan() at
// the top of each select iteration rather than capturing a channel
// value once, so they observe each new generation.
type Broadcaster struct {
	v atomic.Value // chan struct{}
}

// New returns a Broadcaster ready to broadcast.
func New() *Broadcaster {
	b := &Broadcaster{}
	b.v.Store(make(chan struct{}))
	return b
}

// Chan returns the channel to select on; it closes at the next
// Broadcast call.
func (b *Broadcaster) Chan() <-chan struct{} {
	return b.v.Load().(chan struct{})
}

// Broadcast wakes every goroutine currently blocked on Chan() and
// arms a fresh channel for the next generation.
func (b *Broadcaster) Broadcast() {
	old := b.v.Load().(chan struct{})
	b.v.Store(make(chan struct{}))
	close(old)
}

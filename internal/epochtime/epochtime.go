// Package epochtime maps wall-clock time onto the mix network's epoch
// schedule: a fixed-duration, monotonically increasing sequence of
// windows during which a single mix key is valid.
//
// This mirrors the three-value epochtime.Now() convention used
// throughout the teacher (e.g. meskio-server/pki.go's
// "now, elapsed, till := epochtime.Now()").
package epochtime

import "time"

// Period is the duration of a single epoch. It is a deployment
// constant, not user configurable, matching the teacher's own
// epochtime package.
const Period = 30 * time.Minute

// Epoch is the genesis instant from which epoch 0 began.
var Epoch = time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC)

// Now returns the current epoch, the time elapsed since the epoch
// began, and the time remaining until the next epoch begins.
func Now() (epoch uint64, elapsed, till time.Duration) {
	return FromUnix(time.Now())
}

// FromUnix is Now(), parameterized on the wall-clock time t, split out
// so the clock can be driven deterministically in tests.
func FromUnix(t time.Time) (epoch uint64, elapsed, till time.Duration) {
	fromEpoch := t.Sub(Epoch)
	if fromEpoch < 0 {
		return 0, 0, Period
	}
	ep := uint64(fromEpoch / Period)
	elapsed = fromEpoch - time.Duration(ep)*Period
	till = Period - elapsed
	return ep, elapsed, till
}

package crypto

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	logging "gopkg.in/op/go-logging.v1"

	intlog "github.com/katzenpost/katzenpost/minion/internal/log"
	"github.com/katzenpost/katzenpost/minion/internal/epochtime"
	"github.com/katzenpost/katzenpost/minion/internal/mixkey"
	"github.com/katzenpost/katzenpost/minion/internal/nike"
	"github.com/katzenpost/katzenpost/minion/internal/nike/ecdh"
	"github.com/katzenpost/katzenpost/minion/internal/packet"
	"github.com/katzenpost/katzenpost/minion/internal/replay"
	"github.com/katzenpost/katzenpost/minion/internal/sphinx"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	b, err := intlog.New(&bytes.Buffer{}, "DEBUG")
	require.NoError(t, err)
	return b.GetLogger("crypto-test")
}

func testEpochKey(t *testing.T, epoch uint64) *mixkey.EpochKey {
	t.Helper()
	scheme := ecdh.NewEcdhNike(bytes.NewReader(bytes.Repeat([]byte{0x07}, 64)))
	priv, err := scheme.GenerateKeypair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "store.db")
	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	replaySet, err := replay.Open(db, epoch, 16)
	require.NoError(t, err)

	return &mixkey.EpochKey{Epoch: epoch, Private: priv, Public: priv.Public(), Replay: replaySet}
}

func testPacket(t *testing.T) *packet.Packet {
	t.Helper()
	pkt, err := packet.New(1, bytes.Repeat([]byte{0x01}, packet.SphinxPacketLength))
	require.NoError(t, err)
	return pkt
}

// fakeUnwrapper implements sphinx.Unwrapper, always returning a fixed
// result regardless of the candidate key, so tests can drive the
// crypto pool's routing logic without a real Sphinx primitive.
type fakeUnwrapper struct {
	payload   []byte
	replayTag []byte
	cmds      *sphinx.CommandSet
	err       error
}

func (f *fakeUnwrapper) Unwrap(priv nike.PrivateKey, raw []byte) ([]byte, []byte, *sphinx.CommandSet, error) {
	return f.payload, f.replayTag, f.cmds, f.err
}

type fakeRouter struct {
	forwardCalled, decoyCalled, deliverCalled bool
	forwardDelay                              time.Duration
	err                                        error
}

func (f *fakeRouter) Forward(pkt *packet.Packet, remainingDelay time.Duration) error {
	f.forwardCalled = true
	f.forwardDelay = remainingDelay
	return f.err
}
func (f *fakeRouter) DecoyRespond(pkt *packet.Packet) error {
	f.decoyCalled = true
	return f.err
}
func (f *fakeRouter) Deliver(pkt *packet.Packet) error {
	f.deliverCalled = true
	return f.err
}

func TestProcessDropsOnDwellExceeded(t *testing.T) {
	p := &Pool{log: testLogger(t), slackTime: 0, gracePeriod: time.Minute}
	pkt := testPacket(t)
	pkt.RecvAt = time.Now().Add(-time.Hour)
	current, _, _ := epochtime.Now()

	// No router/unwrap configured and the current epoch is present in
	// the shadow; reaching past the dwell check would nil-deref, so a
	// clean return proves the drop happened first.
	p.process(pkt, map[uint64]*mixkey.EpochKey{current: nil})
}

func TestProcessDropsWhenCurrentEpochHasNoKey(t *testing.T) {
	p := &Pool{log: testLogger(t), slackTime: time.Hour, gracePeriod: time.Minute}
	pkt := testPacket(t)
	p.process(pkt, map[uint64]*mixkey.EpochKey{})
}

func TestProcessRoutesForwardPacket(t *testing.T) {
	current, _, _ := epochtime.Now()
	ek := testEpochKey(t, current)
	cmds := &sphinx.CommandSet{
		HasNextHop: true, NextHopID: make([]byte, packet.NodeIDLength),
		HasDelay: true, Delay: int64(time.Second),
	}
	router := &fakeRouter{}
	p := &Pool{
		log:         testLogger(t),
		unwrap:      &fakeUnwrapper{payload: []byte("payload"), cmds: cmds},
		router:      router,
		slackTime:   time.Hour,
		gracePeriod: time.Minute,
	}
	shadow := map[uint64]*mixkey.EpochKey{current: ek}

	pkt := testPacket(t)
	p.process(pkt, shadow)

	require.True(t, router.forwardCalled)
	require.False(t, router.decoyCalled)
	require.False(t, router.deliverCalled)
}

func TestProcessDropsReplay(t *testing.T) {
	current, _, _ := epochtime.Now()
	ek := testEpochKey(t, current)
	tag := []byte("deadbeefdeadbeefdeadbeefdeadbeef")
	_, err := ek.Replay.IsReplay(tag)
	require.NoError(t, err)

	cmds := &sphinx.CommandSet{HasNextHop: true, NextHopID: make([]byte, packet.NodeIDLength), HasDelay: true}
	router := &fakeRouter{}
	p := &Pool{
		log:         testLogger(t),
		unwrap:      &fakeUnwrapper{payload: []byte("payload"), cmds: cmds, replayTag: tag},
		router:      router,
		slackTime:   time.Hour,
		gracePeriod: time.Minute,
	}
	shadow := map[uint64]*mixkey.EpochKey{current: ek}

	pkt := testPacket(t)
	p.process(pkt, shadow)

	require.False(t, router.forwardCalled, "a replayed tag must never reach routing")
}

func TestRouteDeliversToUserOnProvider(t *testing.T) {
	router := &fakeRouter{}
	p := &Pool{log: testLogger(t), router: router, isProvider: true}

	pkt := testPacket(t)
	pkt.SetCommands(nil, &packet.DelayCommand{Delay: time.Second}, &packet.RecipientCommand{}, nil)

	p.route(pkt, 0)
	require.True(t, router.deliverCalled)
}

func TestRouteRejectsClientOriginatedAtProvider(t *testing.T) {
	router := &fakeRouter{}
	p := &Pool{log: testLogger(t), router: router, isProvider: true}

	pkt := testPacket(t)
	pkt.MustForward = true
	pkt.SetCommands(nil, &packet.DelayCommand{Delay: time.Second}, &packet.RecipientCommand{}, nil)

	p.route(pkt, 0)
	require.False(t, router.deliverCalled)
}

func TestRouteDecoyRespondsOnNonProviderSurbReply(t *testing.T) {
	router := &fakeRouter{}
	p := &Pool{log: testLogger(t), router: router, isProvider: false}

	pkt := testPacket(t)
	pkt.SetCommands(nil, nil, &packet.RecipientCommand{}, &packet.SurbReplyCommand{})

	p.route(pkt, 0)
	require.True(t, router.decoyCalled)
}

func TestRouteZeroDelayForwardsImmediately(t *testing.T) {
	router := &fakeRouter{}
	p := &Pool{log: testLogger(t), router: router}

	pkt := testPacket(t)
	pkt.SetCommands(&packet.NextHopCommand{}, &packet.DelayCommand{Delay: 0}, nil, nil)

	p.route(pkt, 0)
	require.True(t, router.forwardCalled)
	require.Equal(t, time.Duration(0), router.forwardDelay)
}

func TestRouteDropsPastDeadline(t *testing.T) {
	router := &fakeRouter{}
	p := &Pool{log: testLogger(t), router: router}

	pkt := testPacket(t)
	pkt.SetCommands(&packet.NextHopCommand{}, &packet.DelayCommand{Delay: time.Millisecond}, nil, nil)

	p.route(pkt, time.Second)
	require.False(t, router.forwardCalled)
}

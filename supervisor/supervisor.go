// Package supervisor wires every stage of the packet-processing
// pipeline together and owns the node's lifecycle (spec §4.9): the
// Mix-Key Store, the Connection Fount, N dispatcher/reader pipelines,
// M crypto workers, and the epoch timer that keeps the key retention
// window current.
//
// Grounded on mixmasala-server/server.go's New()/halt() ordering
// ("WARNING: The ordering of operations here is deliberate") and
// meskio-server/pki.go's worker-loop/timer-reset idiom for the epoch
// timer.
package supervisor

import (
	"time"

	"gopkg.in/eapache/channels.v1"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/katzenpost/minion/config"
	"github.com/katzenpost/katzenpost/minion/crypto"
	"github.com/katzenpost/katzenpost/minion/dispatcher"
	"github.com/katzenpost/katzenpost/minion/fount"
	"github.com/katzenpost/katzenpost/minion/internal/epochtick"
	"github.com/katzenpost/katzenpost/minion/internal/epochtime"
	"github.com/katzenpost/katzenpost/minion/internal/identity"
	intlog "github.com/katzenpost/katzenpost/minion/internal/log"
	"github.com/katzenpost/katzenpost/minion/internal/mixkey"
	"github.com/katzenpost/katzenpost/minion/internal/packet"
	"github.com/katzenpost/katzenpost/minion/internal/pki"
	"github.com/katzenpost/katzenpost/minion/internal/replay"
	"github.com/katzenpost/katzenpost/minion/internal/sphinx"
	"github.com/katzenpost/katzenpost/minion/internal/wire"
	"github.com/katzenpost/katzenpost/minion/internal/worker"
	"github.com/katzenpost/katzenpost/minion/outbound"
	"github.com/katzenpost/katzenpost/minion/provider"
	"github.com/katzenpost/katzenpost/minion/reader"
)

// epochTickInterval is how often the supervisor's timer goroutine
// checks whether an ensure/prune boundary has been crossed. It is
// deliberately much finer than the grace period so the boundary is
// never missed by more than this margin.
const epochTickInterval = 1 * time.Second

// Supervisor owns the full pipeline for the lifetime of the process.
type Supervisor struct {
	worker.Worker

	logBackend *intlog.Backend
	log        *logging.Logger
	cfg        *config.Config

	linkKey *identity.LinkKey
	keys    *mixkey.Store

	fount       *fount.Fount
	dispatchers []*dispatcher.Dispatcher
	pool        *crypto.Pool
	sched       *outbound.Scheduler
	tick        *epochtick.Broadcaster
	packets     *channels.InfiniteChannel

	pkiClient pki.Client
	mailbox   provider.Mailbox
	unwrap    sphinx.Unwrapper
	handshake wire.HandshakeFunc
}

// Deps bundles the out-of-scope collaborators a production binary
// must supply (spec §1): the PKI client, the Sphinx unwrap primitive,
// the link handshake function, and the provider mailbox.
type Deps struct {
	PKI       pki.Client
	Unwrap    sphinx.Unwrapper
	Handshake wire.HandshakeFunc
	Mailbox   provider.Mailbox
}

// New constructs and starts the full pipeline described by cfg.
func New(cfg *config.Config, deps *Deps) (*Supervisor, error) {
	logBackend, err := intlog.NewFile(cfg.Logging.LogFile, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		logBackend: logBackend,
		log:        logBackend.GetLogger("supervisor"),
		cfg:        cfg,
		pkiClient:  deps.PKI,
		unwrap:     deps.Unwrap,
		handshake:  deps.Handshake,
		mailbox:    deps.Mailbox,
		tick:       epochtick.New(),
		packets:    channels.NewInfiniteChannel(),
	}

	linkKey, err := identity.LoadOrGenerate(cfg.Server.DataDir)
	if err != nil {
		return nil, err
	}
	s.linkKey = linkKey

	s.keys = mixkey.NewStore(cfg.Server.DataDir, cfg.Server.LineRate)
	current, _, _ := epochtime.Now()
	expected := replay.ExpectedItems(cfg.Server.LineRate, epochtime.Period, packet.SphinxPacketLength)
	if _, err := s.keys.Ensure(current, expected); err != nil {
		s.keys.Close()
		return nil, err
	}

	sessionCfg := &wire.SessionConfig{
		Authenticator:     pki.NewAuthenticator(s.pkiClient),
		AuthenticationKey: s.linkKey.Private.Bytes(),
	}

	s.sched = outbound.New(logBackend.GetLogger("outbound"), s.pkiClient, s.handshake, sessionCfg, s.mailbox, func() uint64 {
		e, _, _ := epochtime.Now()
		return e
	})

	cryptoCfg := &crypto.Config{
		NumWorkers:  cfg.Server.NumCryptoWorkers,
		SlackTime:   cfg.SlackTime(),
		GracePeriod: cfg.GracePeriod(),
		IsProvider:  cfg.Server.IsProvider,
	}
	s.pool = crypto.New(logBackend.GetLogger("crypto"), cryptoCfg, s.packets.Out(), s.tick, s.keys, s.unwrap, s.sched)

	f, err := fount.New(logBackend.GetLogger("fount"), cfg.Server.Addresses, 128)
	if err != nil {
		s.Halt()
		return nil, err
	}
	s.fount = f

	for i := 0; i < cfg.Server.NumWireWorkers; i++ {
		d := dispatcher.New(logBackend.GetLogger("dispatcher"), f.Conns(), s.handshake, sessionCfg, 32)
		s.dispatchers = append(s.dispatchers, d)
		s.Go(func() { s.drainSessions(d) })
	}

	s.Go(s.epochTimer)

	return s, nil
}

// drainSessions spawns one reader goroutine per Session a dispatcher
// emits (spec §5: "one [thread] per session reader, for the lifetime
// of that session").
func (s *Supervisor) drainSessions(d *dispatcher.Dispatcher) {
	for {
		select {
		case <-s.HaltCh():
			return
		case sess, ok := <-d.Sessions():
			if !ok {
				return
			}
			s.Go(func() { s.runReader(sess) })
		}
	}
}

func (s *Supervisor) runReader(sess wire.Session) {
	r := reader.New(s.logBackend.GetLogger("reader"), sess, s.cfg.Server.IsProvider, s.packets.In(), s.mailbox, s.pkiClient)
	if err := r.Run(); err != nil {
		s.log.Warningf("supervisor: reader pipeline torn down: %s", err)
	}
}

// epochTimer implements spec §4.9's boundary logic: at
// till_next == grace_period, ensure(current+1) and broadcast; at
// rollover, prune and broadcast.
func (s *Supervisor) epochTimer() {
	ticker := time.NewTicker(epochTickInterval)
	defer ticker.Stop()

	lastEpoch, _, _ := epochtime.Now()
	armedNext := false

	for {
		select {
		case <-s.HaltCh():
			return
		case <-ticker.C:
			current, _, till := epochtime.Now()

			if current != lastEpoch {
				s.keys.Prune(current)
				lastEpoch = current
				armedNext = false
				s.tick.Broadcast()
				continue
			}

			if !armedNext && till < s.cfg.GracePeriod() {
				expected := replay.ExpectedItems(s.cfg.Server.LineRate, epochtime.Period, packet.SphinxPacketLength)
				if _, err := s.keys.Ensure(current+1, expected); err != nil {
					s.log.Errorf("supervisor: failed to ensure epoch %d: %s", current+1, err)
					continue
				}
				armedNext = true
				s.tick.Broadcast()
			}
		}
	}
}

// Halt tears down the pipeline in the order mandated by spec §4.9:
// broadcast halt, let workers exit, drop senders, join.
func (s *Supervisor) Halt() {
	if s.fount != nil {
		s.fount.Halt()
	}
	for _, d := range s.dispatchers {
		d.Halt()
	}
	if s.sched != nil {
		s.sched.Halt()
	}
	if s.pool != nil {
		s.pool.Halt()
	}
	s.Worker.Halt()
	if s.keys != nil {
		s.keys.Close()
	}
	if s.linkKey != nil {
		s.linkKey.Close()
	}
}

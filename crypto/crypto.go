// Package crypto implements the Crypto Worker Pool (spec §4.8): M
// worker goroutines, each holding a worker-local shadow of the
// supervisor's MixKeys, that unwrap Sphinx packets, check replays, and
// route or drop according to the packet's decoded command set.
//
// Grounded on meskio-server/pki.go's candidate-epoch/grace-period
// slack logic (generalized here from a PKI document staleness check
// to the mix key candidate set of spec §4.8 step 2) and
// mixmasala-server/server.go's worker pool shape (M goroutines reading
// one shared packet channel, re-shadowing on an update tick).
package crypto

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/katzenpost/minion/internal/epochtick"
	"github.com/katzenpost/katzenpost/minion/internal/epochtime"
	"github.com/katzenpost/katzenpost/minion/internal/mixkey"
	"github.com/katzenpost/katzenpost/minion/internal/packet"
	"github.com/katzenpost/katzenpost/minion/internal/sphinx"
	"github.com/katzenpost/katzenpost/minion/internal/worker"
)

// Outcome classifies where a processed Packet ended up, for metrics
// and tests (spec §4.8 "State machine (per Packet within the
// worker)").
type Outcome int

const (
	OutcomeForwarded Outcome = iota
	OutcomeDelivered
	OutcomeDropped
)

// Router is the sink a worker hands a successfully classified Packet
// to: the outbound scheduler for forwards and SURB replies, the
// provider mailbox for user deliveries. Both are out-of-scope
// collaborators (spec §1); Router is the seam.
//
// Once any of these three methods is called, pkt's ownership passes
// to Router: the crypto worker touches it no further and never
// disposes it itself, even if the method returns an error. Router is
// responsible for disposing pkt exactly once, whenever it is actually
// done with it — which for Forward may be well after the call
// returns, once the outbound scheduler's delay elapses and the send
// completes.
type Router interface {
	// Forward enqueues pkt to the outbound scheduler with the
	// given remaining delay (spec §4.8 step 6, is_forward case).
	Forward(pkt *packet.Packet, remainingDelay time.Duration) error

	// DecoyRespond handles a non-provider node's SURB-reply packet
	// (spec §4.8 step 6, "hand off to the decoy-response path").
	DecoyRespond(pkt *packet.Packet) error

	// Deliver hands a provider-terminated packet to user delivery
	// (spec §4.8 step 6, provider is_to_user/is_unreliable_to_user/
	// is_surb_reply case).
	Deliver(pkt *packet.Packet) error
}

var (
	metricAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "minion_packets_accepted_total",
		Help: "Packets that reached a terminal Forwarded or Delivered state.",
	})
	metricDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "minion_packets_dropped_total",
		Help: "Packets dropped by the crypto worker pool, labeled by reason.",
	}, []string{"reason"})
	metricReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "minion_replays_detected_total",
		Help: "Packets rejected as replays.",
	})
)

func init() {
	prometheus.MustRegister(metricAccepted, metricDropped, metricReplays)
}

// Pool is the M-worker crypto pool.
type Pool struct {
	worker.Worker

	log        *logging.Logger
	packets    <-chan interface{}
	updateTick *epochtick.Broadcaster
	keys       *mixkey.Store
	unwrap     sphinx.Unwrapper
	router     Router

	slackTime   time.Duration
	gracePeriod time.Duration
	isProvider  bool
}

// Config bundles Pool's tunables, all sourced from config/config.go's
// [server] section.
type Config struct {
	NumWorkers  int
	SlackTime   time.Duration
	GracePeriod time.Duration
	IsProvider  bool
}

// New starts cfg.NumWorkers crypto worker goroutines.
func New(log *logging.Logger, cfg *Config, packets <-chan interface{}, updateTick *epochtick.Broadcaster, keys *mixkey.Store, unwrap sphinx.Unwrapper, router Router) *Pool {
	p := &Pool{
		log:         log,
		packets:     packets,
		updateTick:  updateTick,
		keys:        keys,
		unwrap:      unwrap,
		router:      router,
		slackTime:   cfg.SlackTime,
		gracePeriod: cfg.GracePeriod,
		isProvider:  cfg.IsProvider,
	}
	for i := 0; i < cfg.NumWorkers; i++ {
		p.Go(p.worker)
	}
	return p
}

func (p *Pool) worker() {
	shadow := make(map[uint64]*mixkey.EpochKey)
	p.keys.Shadow(shadow)

	for {
		select {
		case <-p.HaltCh():
			return
		case <-p.updateTick.Chan():
			p.keys.Shadow(shadow)
		case v, ok := <-p.packets:
			if !ok {
				return
			}
			pkt, ok := v.(*packet.Packet)
			if !ok {
				continue
			}
			p.process(pkt, shadow)
		}
	}
}

// process runs one Packet through the state machine of spec §4.8:
// Received → DwellChecked → Unwrapped → ReplayChecked → Classified →
// {Forwarded | Delivered | Dropped}. No back-edges.
func (p *Pool) process(pkt *packet.Packet, shadow map[uint64]*mixkey.EpochKey) {
	dwell := time.Since(pkt.RecvAt)
	if dwell > p.slackTime {
		p.drop("dwell", pkt)
		return
	}

	current, elapsed, till := epochtime.Now()
	candidates := []uint64{current}
	switch {
	case elapsed < p.gracePeriod && current > 0:
		candidates = append(candidates, current-1)
	case till < p.gracePeriod:
		candidates = append(candidates, current+1)
	}

	if _, ok := shadow[current]; !ok {
		p.drop("no_key", pkt)
		return
	}

	var (
		payload   []byte
		replayTag []byte
		cmds      *sphinx.CommandSet
		matched   *mixkey.EpochKey
		unwrapped []byte
	)
	for _, epoch := range candidates {
		ek, ok := shadow[epoch]
		if !ok {
			continue
		}
		attempt := pkt.CopyRaw()
		var err error
		payload, replayTag, cmds, err = p.unwrap.Unwrap(ek.Private, attempt)
		if err == nil {
			matched = ek
			unwrapped = attempt
			break
		}
	}
	if matched == nil {
		p.drop("unwrap", pkt)
		return
	}

	if replayTag != nil {
		isReplay, err := matched.Replay.IsReplay(replayTag)
		if err != nil {
			p.drop("cache_fail", pkt)
			return
		}
		if isReplay {
			metricReplays.Inc()
			p.drop("replay", pkt)
			return
		}
	}

	copy(pkt.Raw, unwrapped)
	pkt.SetPayload(payload)
	pkt.ReplayTag = replayTag
	pkt.SetCommands(
		toNextHop(cmds), toDelay(cmds), toRecipient(cmds), toSurbReply(cmds),
	)

	p.route(pkt, dwell)
}

// route implements spec §4.8 step 6's classify-and-route predicates,
// branching first on is_forward, then on this node's static role
// (§8 property 7, "Provider routing matrix").
func (p *Pool) route(pkt *packet.Packet, dwell time.Duration) {
	class := pkt.Classify()

	if class == packet.ClassForward {
		if pkt.MustTerminate {
			p.drop("forward_to_terminal", pkt)
			return
		}
		// delay == 0 is "deliver immediately", not "already past
		// deadline" (spec §9 Open Question (b)) — it always forwards
		// with a zero remaining delay rather than being subjected to
		// the delay <= dwell drop rule below.
		var remaining time.Duration
		if pkt.Delay.Delay > 0 {
			if pkt.Delay.Delay <= dwell {
				p.drop("past_deadline", pkt)
				return
			}
			remaining = pkt.Delay.Delay - dwell
		}
		if err := p.router.Forward(pkt, remaining); err != nil {
			p.dropHandedOff("forward_failed", pkt)
			return
		}
		metricAccepted.Inc()
		return
	}

	if !p.isProvider {
		if class == packet.ClassSurbReply {
			if err := p.router.DecoyRespond(pkt); err != nil {
				p.dropHandedOff("decoy_failed", pkt)
				return
			}
			metricAccepted.Inc()
			return
		}
		p.drop("invalid_class", pkt)
		return
	}

	// Provider.
	if pkt.MustForward {
		p.drop("client_originated_at_provider", pkt)
		return
	}
	switch class {
	case packet.ClassToUser, packet.ClassToUserUnreliable, packet.ClassSurbReply:
		if err := p.router.Deliver(pkt); err != nil {
			p.dropHandedOff("deliver_failed", pkt)
			return
		}
		metricAccepted.Inc()
	default:
		p.drop("invalid_class", pkt)
	}
}

// drop accounts for and discards pkt. Disposal happens here, not via a
// blanket defer in process, because a packet that is instead handed
// off to Router.Forward/DecoyRespond/Deliver is still in use long
// after process returns (outbound.Scheduler's forward path sends it
// asynchronously once its delay elapses) — disposing it early would
// zero the ciphertext out from under that in-flight send. Ownership
// of a routed packet passes to Router, which disposes it once it is
// actually done with it.
func (p *Pool) drop(reason string, pkt *packet.Packet) {
	metricDropped.WithLabelValues(reason).Inc()
	p.log.Debugf("crypto: dropped packet %d: %s", pkt.ID, reason)
	pkt.Dispose()
}

// dropHandedOff accounts for a Forward/DecoyRespond/Deliver call that
// itself returned an error. pkt is not disposed here: the call already
// handed ownership to Router, which disposes it whether or not the
// call succeeds (outbound.Scheduler does so on every return path of
// the routines backing these three methods).
func (p *Pool) dropHandedOff(reason string, pkt *packet.Packet) {
	metricDropped.WithLabelValues(reason).Inc()
	p.log.Debugf("crypto: dropped packet %d: %s", pkt.ID, reason)
}

func toNextHop(c *sphinx.CommandSet) *packet.NextHopCommand {
	if !c.HasNextHop {
		return nil
	}
	cmd := &packet.NextHopCommand{}
	copy(cmd.ID[:], c.NextHopID)
	return cmd
}

func toDelay(c *sphinx.CommandSet) *packet.DelayCommand {
	if !c.HasDelay {
		return nil
	}
	return &packet.DelayCommand{Delay: time.Duration(c.Delay)}
}

func toRecipient(c *sphinx.CommandSet) *packet.RecipientCommand {
	if !c.HasRecipient {
		return nil
	}
	cmd := &packet.RecipientCommand{}
	copy(cmd.ID[:], c.RecipientID)
	return cmd
}

func toSurbReply(c *sphinx.CommandSet) *packet.SurbReplyCommand {
	if !c.HasSurbReply {
		return nil
	}
	cmd := &packet.SurbReplyCommand{}
	copy(cmd.ID[:], c.SurbReplyID)
	return cmd
}

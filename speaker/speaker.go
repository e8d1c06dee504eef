// Package speaker implements the speaker supervisor of §4.5: the
// listening socket on 179, the {remote_ip -> Peer} map, and the
// lifecycle that starts every configured peer's session.Worker and
// aggregates their decoded route deltas onto one channel.
//
// Grounded on _examples/transitorykris-kbgp/bgp/speaker.go's listener()
// accept loop and its remote-address-to-FSM matching, generalized to
// hand accepted connections to session.Worker.Control() instead of
// mutating FSM fields directly, and to apply RFC 4271 §6.8 collision
// resolution via fsm.ShouldCloseOnCollision instead of only validating
// the remote address. Per-peer supervision uses one
// golang.org/x/sync/errgroup per peer (SPEC_FULL.md §5) rather than one
// shared errgroup, so a fatal error on one peer never cancels its
// siblings — grounded on pobradovic08-route-beacon-ri's use of
// golang.org/x/sync.
package speaker

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bgpd/config"
	"bgpd/fsm"
	"bgpd/message"
	"bgpd/metrics"
	"bgpd/session"
)

// Supervisor owns the listening socket and every peer's worker.
type Supervisor struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry

	mu    sync.RWMutex
	peers map[netip.Addr]*peerEntry

	routes chan session.RouteDelta

	listener net.Listener
	cancel   context.CancelFunc

	// peerPort overrides the port outbound connections dial, in place
	// of the well-known 179; zero means use the worker default. Tests
	// use SetPeerPort to point outbound dials at a loopback listener.
	peerPort int
}

// SetPeerPort overrides the port every peer worker dials outbound
// connections on. Call before Start.
func (s *Supervisor) SetPeerPort(port int) { s.peerPort = port }

type peerEntry struct {
	peer   *Peer
	worker *session.Worker
	done   chan struct{}
}

// New builds a Supervisor from a loaded configuration. reg may be nil
// to disable metrics (tests typically pass nil).
func New(cfg *config.Config, logger *zap.Logger, reg *metrics.Registry) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:     cfg,
		logger:  logger,
		metrics: reg,
		peers:   make(map[netip.Addr]*peerEntry),
		routes:  make(chan session.RouteDelta, 64),
	}
}

// RouteEvents returns the channel every peer worker's decoded route
// deltas are aggregated onto, in arrival order.
func (s *Supervisor) RouteEvents() <-chan session.RouteDelta { return s.routes }

// Peer looks up a peer, configured or dynamically accepted, by remote
// address.
func (s *Supervisor) Peer(ip netip.Addr) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.peers[ip]
	if !ok {
		return nil, false
	}
	return e.peer, true
}

// Peers returns a snapshot of every known peer.
func (s *Supervisor) Peers() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, e := range s.peers {
		out = append(out, e.peer)
	}
	return out
}

// Start opens the listening socket, starts every configured neighbor's
// worker with AutomaticStart, and runs the accept loop until ctx is
// canceled or the listener fails. It blocks; call it in its own
// goroutine.
func (s *Supervisor) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp4", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("speaker: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	for _, n := range s.cfg.Neighbors {
		entry := s.startPeer(ctx, n.IP, uint32(n.ASNum), n.HoldTime, false)
		s.peers[n.IP] = entry
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	return s.acceptLoop(ctx, ln)
}

// Stop sends AutomaticStop to every peer, per §4.5, then cancels the
// workers' context and joins them. It returns once every worker has
// exited or ctx expires first.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.RLock()
	entries := make([]*peerEntry, 0, len(s.peers))
	for _, e := range s.peers {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.worker.Control() <- session.ControlEvent{Kind: session.ControlAdmin, Admin: fsm.AutomaticStop}
	}
	if s.cancel != nil {
		s.cancel()
	}
	for _, e := range entries {
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// startPeer builds, registers, and launches one peer's worker under
// its own errgroup, so a fatal error there is isolated from every other
// peer (SPEC_FULL.md §5). Callers hold s.mu.
func (s *Supervisor) startPeer(ctx context.Context, ip netip.Addr, remoteAS uint32, hold time.Duration, passive bool) *peerEntry {
	cfg := s.fsmConfigFor(remoteAS, hold, passive)
	w := session.NewWorker(ip, cfg, s.logger, s.routes)
	if s.peerPort != 0 {
		w.SetPort(s.peerPort)
	}
	if s.metrics != nil {
		w.SetMetrics(s.metrics.Register(ip.String()))
	}

	p := newPeer(ip, remoteAS, uint32(s.cfg.MyAS))
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })

	go func() {
		defer close(done)
		if err := g.Wait(); err != nil && gctx.Err() != context.Canceled {
			s.logger.Warn("peer worker exited", zap.String("peer", ip.String()), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.Unregister(ip.String())
		}
	}()
	go s.pumpStatus(gctx, p, w)

	startKind := fsm.AutomaticStart
	if passive {
		startKind = fsm.AutomaticStartPassive
	}
	w.Control() <- session.ControlEvent{Kind: session.ControlAdmin, Admin: startKind}

	return &peerEntry{peer: p, worker: w, done: done}
}

// pumpStatus drains a worker's status channel into its Peer so
// Supervisor.Peer callers observe state without racing the worker's own
// goroutine.
func (s *Supervisor) pumpStatus(ctx context.Context, p *Peer, w *session.Worker) {
	for {
		select {
		case st := <-w.Status():
			p.storeStatus(st)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) fsmConfigFor(remoteAS uint32, hold time.Duration, passive bool) fsm.Config {
	caps := message.Capabilities{
		RouteRefreshPreStandard: s.cfg.Capabilities.RouteRefreshPreStandard,
		RouteRefresh:            s.cfg.Capabilities.RouteRefresh,
		EnhancedRouteRefresh:    s.cfg.Capabilities.EnhancedRouteRefresh,
		FourOctetASN:            s.cfg.Capabilities.Extended4ByteASN,
		Multiprotocol:           s.cfg.Capabilities.Multiprotocol,
	}
	cfg := fsm.Config{
		LocalAS:                         uint32(s.cfg.MyAS),
		LocalRouterID:                   addrToUint32(s.cfg.RouterID),
		RemoteAS:                        remoteAS,
		AllowAutomaticStart:             true,
		AllowAutomaticStop:              true,
		PassiveTCPEstablishment:         passive,
		CollisionDetectEstablishedState: true,
		Capabilities:                    caps,
	}
	if hold > 0 {
		cfg.HoldTime = hold
	}
	return cfg
}

func addrToUint32(addr netip.Addr) uint32 {
	if !addr.Is4() {
		return 0
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

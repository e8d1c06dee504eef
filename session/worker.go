// Package session implements the peer session worker of §4.4: one
// goroutine per peer owning a transport connection, an accumulator read
// buffer, the peer's fsm.Machine, and the channels that connect it to
// the speaker supervisor.
//
// Grounded on the single-goroutine select loop over conn/update/timer
// channels in _examples/davidcoles-cue/bgp/session.go, adapted from its
// ad hoc inline state checks to drive the fsm package's Step instead of
// repeating RFC 4271's transition table inline.
package session

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bgpd/fsm"
	"bgpd/message"
	"bgpd/metrics"
	"bgpd/timer"
)

// readChunkSize is the size of one net.Conn.Read call into the
// accumulator buffer.
const readChunkSize = 4096

// timerPollInterval is the cadence the worker polls the machine's
// timers on, well under the ≤100ms bound §4.2 requires.
const timerPollInterval = 50 * time.Millisecond

// dialTimeout bounds an outbound connection attempt triggered by
// EffectInitiateTCP.
const dialTimeout = 10 * time.Second

// bgpPort is the well-known BGP transport port (§6).
const bgpPort = 179

type readResult struct {
	data []byte
	err  error
}

type dialOutcome struct {
	conn net.Conn
	err  error
}

// Worker owns exactly one peer's transport connection and fsm.Machine.
type Worker struct {
	peerIP netip.Addr
	port   int
	logger *zap.Logger

	machine *fsm.Machine

	control chan ControlEvent
	status  chan Status
	routes  chan<- RouteDelta

	conn     net.Conn
	connDone chan struct{}
	readCh   chan readResult
	dialCh   chan dialOutcome

	buf []byte

	metrics *metrics.PeerHandle
}

// NewWorker builds a Worker in the Idle state. routes may be nil if the
// caller does not want route deltas (e.g. a unit test exercising only
// session establishment).
func NewWorker(peerIP netip.Addr, cfg fsm.Config, logger *zap.Logger, routes chan<- RouteDelta) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("peer", peerIP.String()))
	return &Worker{
		peerIP:  peerIP,
		port:    bgpPort,
		logger:  logger,
		machine: fsm.New(cfg, logger),
		control: make(chan ControlEvent, 4),
		status:  make(chan Status, 1),
		routes:  routes,
		dialCh:  make(chan dialOutcome, 1),
	}
}

// Control returns the channel used to send administrative events
// (ManualStart, ManualStop, ...) and inbound-connection hand-offs to
// this worker.
func (w *Worker) Control() chan<- ControlEvent { return w.control }

// Status returns the channel this worker publishes state snapshots to
// after every transition. It is buffered 1 and always holds the most
// recent snapshot; callers drain it opportunistically for observability.
func (w *Worker) Status() <-chan Status { return w.status }

// PeerIP reports the remote address this worker is responsible for.
func (w *Worker) PeerIP() netip.Addr { return w.peerIP }

// SetMetrics binds this worker to a registered metrics.PeerHandle. A nil
// handle (the default) disables metrics entirely; safe to call before
// Run.
func (w *Worker) SetMetrics(h *metrics.PeerHandle) { w.metrics = h }

// SetPort overrides the TCP port outbound connections dial, in place of
// the well-known BGP port 179. Tests use this to point a worker at a
// loopback listener bound to an ephemeral port. Safe to call before Run.
func (w *Worker) SetPort(port int) { w.port = port }

// Run drives the worker's event loop until ctx is canceled. On
// cancellation it completes any in-flight write, sends
// NOTIFICATION(Cease) if Established, closes the transport, and
// returns ctx.Err(), per §5's cancellation contract.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(timerPollInterval)
	defer ticker.Stop()
	defer w.setConn(nil)

	for {
		select {
		case <-ctx.Done():
			if w.machine.State() == fsm.Established {
				w.send(&message.Notification{Code: message.ErrCodeCease})
			}
			return ctx.Err()

		case ev := <-w.control:
			w.handleControl(ctx, ev)

		case dr := <-w.dialCh:
			if dr.err != nil {
				w.logger.Warn("outbound connect failed", zap.Error(dr.err))
				w.applyEvent(ctx, fsm.Event{Kind: fsm.TcpConnectionFails})
				continue
			}
			w.setConn(dr.conn)
			w.applyEvent(ctx, fsm.Event{Kind: fsm.TcpCRAcked})

		case rr, ok := <-w.readCh:
			if !ok {
				continue
			}
			w.handleRead(ctx, rr)

		case <-ticker.C:
			w.pollTimers(ctx)
		}
	}
}

func (w *Worker) handleControl(ctx context.Context, ev ControlEvent) {
	switch ev.Kind {
	case ControlAdmin:
		w.applyEvent(ctx, fsm.Event{Kind: ev.Admin})
	case ControlInboundConn:
		w.setConn(ev.Conn)
		w.applyEvent(ctx, fsm.Event{Kind: fsm.TcpConnectionConfirmed})
	}
}

func (w *Worker) handleRead(ctx context.Context, rr readResult) {
	if rr.err != nil {
		w.applyEvent(ctx, fsm.Event{Kind: fsm.TcpConnectionFails})
		return
	}
	w.buf = append(w.buf, rr.data...)
	msgs, residual, err := message.ExtractMessages(w.buf)
	for _, m := range msgs {
		w.handleMessage(ctx, m)
	}
	if err != nil {
		w.buf = w.buf[:0]
		w.applyEvent(ctx, fsm.Event{Kind: fsm.BgpHeaderErr})
		return
	}
	if len(residual) > 0 {
		w.buf = append(w.buf[:0], residual...)
	} else {
		w.buf = w.buf[:0]
	}
}

func (w *Worker) handleMessage(ctx context.Context, buf []byte) {
	typ, err := message.ParseType(buf)
	if err != nil {
		w.applyEvent(ctx, fsm.Event{Kind: fsm.BgpHeaderErr})
		return
	}
	switch typ {
	case message.TypeOpen:
		o, err := message.ParseOpen(buf)
		if err != nil {
			w.applyEvent(ctx, fsm.Event{Kind: fsm.BgpOpenMsgErr})
			return
		}
		w.countMessage("open", "in")
		kind := fsm.OpenMsg
		if running, _ := w.machine.DelayOpenTimer().IsRunning(); running {
			kind = fsm.BgpOpenWithDelayOpen
		}
		w.applyEvent(ctx, fsm.Event{Kind: kind, Open: o})

	case message.TypeUpdate:
		u, err := message.ParseUpdate(buf)
		if err != nil {
			w.applyEvent(ctx, fsm.Event{Kind: fsm.UpdateMsgErr})
			return
		}
		w.countMessage("update", "in")
		w.applyEvent(ctx, fsm.Event{Kind: fsm.UpdateMsg, Update: u})
		w.deliverRouteDelta(ctx, u)

	case message.TypeKeepalive:
		w.countMessage("keepalive", "in")
		w.applyEvent(ctx, fsm.Event{Kind: fsm.KeepaliveMsg})

	case message.TypeNotification:
		n, err := message.ParseNotification(buf)
		if err != nil {
			return
		}
		w.countMessage("notification", "in")
		if n.Code == message.ErrCodeOpenMessage && n.Subcode == message.SubcodeUnsupportedVersionNumber {
			w.applyEvent(ctx, fsm.Event{Kind: fsm.NotifMsgVerErr, Notification: n})
			return
		}
		w.applyEvent(ctx, fsm.Event{Kind: fsm.NotifMsg, Notification: n})

	case message.TypeRouteRefresh:
		w.countMessage("routerefresh", "in")
		w.applyEvent(ctx, fsm.Event{Kind: fsm.RouteRefreshMsg})
	}
}

func (w *Worker) countMessage(typ, direction string) {
	if w.metrics == nil {
		return
	}
	w.metrics.MessageCounter(typ, direction).Inc()
}

// deliverRouteDelta hands a decoded UPDATE's routes to the supervisor's
// route channel. The send blocks if the channel is full, which in turn
// stalls this worker's read loop (its buffered channel fills next) and
// applies TCP backpressure to the peer, per §5 — decoded updates are
// never dropped.
func (w *Worker) deliverRouteDelta(ctx context.Context, u *message.Update) {
	if w.routes == nil {
		return
	}
	added := routesFromUpdate(u)
	if len(added) == 0 && len(u.WithdrawnRoutes) == 0 {
		return
	}
	if w.metrics != nil {
		w.metrics.Routes.Add(float64(len(added) - len(u.WithdrawnRoutes)))
	}
	delta := RouteDelta{PeerIP: w.peerIP, Added: added, Withdrawn: u.WithdrawnRoutes}
	select {
	case w.routes <- delta:
	case <-ctx.Done():
	}
}

func (w *Worker) pollTimers(ctx context.Context) {
	checks := []struct {
		t    *timer.Timer
		kind fsm.EventKind
	}{
		{w.machine.ConnectRetryTimer(), fsm.ConnectRetryTimerExpires},
		{w.machine.HoldTimer(), fsm.HoldTimerExpires},
		{w.machine.KeepaliveTimer(), fsm.KeepaliveTimerExpires},
		{w.machine.DelayOpenTimer(), fsm.DelayOpenTimerExpires},
		{w.machine.IdleHoldTimer(), fsm.IdleHoldTimerExpires},
	}
	for _, c := range checks {
		if c.t.IsElapsed() {
			c.t.Stop()
			w.applyEvent(ctx, fsm.Event{Kind: c.kind})
		}
	}
}

// applyEvent steps the machine and executes every resulting effect in
// order before the next event is considered, per §5's "effects complete
// before the next event" ordering guarantee — there is only one
// goroutine per worker, so this is automatic rather than enforced.
func (w *Worker) applyEvent(ctx context.Context, ev fsm.Event) {
	before := w.machine.State()
	effects := w.machine.Step(ev)
	for _, e := range effects {
		w.executeEffect(e)
	}
	after := w.machine.State()
	if after != before {
		w.publishStatus()
		if w.metrics != nil {
			w.metrics.State.Set(float64(after))
			if after == fsm.Established {
				w.metrics.Established.Inc()
			}
		}
	}
}

func (w *Worker) executeEffect(e fsm.Effect) {
	switch e.Kind {
	case fsm.EffectInitiateTCP:
		w.dial()
	case fsm.EffectDropTCP:
		w.setConn(nil)
	case fsm.EffectSendOpen:
		w.send(e.Open)
	case fsm.EffectSendKeepalive:
		w.send(&message.Keepalive{})
	case fsm.EffectSendNotification:
		w.send(e.Notification)
	case fsm.EffectResendAdjRIBOut:
		// The worker takes no action for this effect: it does not resend
		// any routes, and the request is not reported to the supervisor
		// either (a RouteRefreshMsg changes no state, so no Status is
		// published for it).
	}
}

// wireBytes is implemented by every message type's Bytes method; used
// so executeEffect's send helper can stay a single switch.
type wireBytes interface{ Bytes() []byte }

func (w *Worker) send(m wireBytes) {
	if w.conn == nil || m == nil {
		return
	}
	if _, err := w.conn.Write(m.Bytes()); err != nil {
		w.logger.Warn("write failed", zap.Error(err))
		return
	}
	w.countMessage(messageTypeName(m), "out")
}

func messageTypeName(m wireBytes) string {
	switch m.(type) {
	case *message.Open:
		return "open"
	case *message.Keepalive:
		return "keepalive"
	case *message.Notification:
		return "notification"
	default:
		return "unknown"
	}
}

func (w *Worker) dial() {
	go func() {
		addr := net.JoinHostPort(w.peerIP.String(), strconv.Itoa(w.port))
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		w.dialCh <- dialOutcome{conn: conn, err: err}
	}()
}

// setConn replaces the current connection (closing the previous one
// and stopping its reader), or clears it entirely when conn is nil.
func (w *Worker) setConn(conn net.Conn) {
	if w.connDone != nil {
		close(w.connDone)
		w.connDone = nil
	}
	if w.conn != nil {
		w.conn.Close()
	}
	w.conn = conn
	w.buf = w.buf[:0]
	if conn == nil {
		w.readCh = nil
		return
	}
	done := make(chan struct{})
	ch := make(chan readResult, 1)
	w.connDone = done
	w.readCh = ch
	go readLoop(conn, ch, done)
}

func readLoop(conn net.Conn, out chan<- readResult, done <-chan struct{}) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case out <- readResult{data: chunk}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case out <- readResult{err: err}:
			case <-done:
			}
			return
		}
	}
}

func (w *Worker) publishStatus() {
	s := Status{
		State:               w.machine.State(),
		ConnectRetryCounter: w.machine.ConnectRetryCounter(),
		NegotiatedHoldTime:  w.machine.NegotiatedHoldTime(),
		RemoteRouterID:      w.machine.RemoteRouterID(),
	}
	select {
	case <-w.status:
	default:
	}
	w.status <- s
}

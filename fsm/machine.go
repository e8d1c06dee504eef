// Package fsm implements the per-peer BGP finite state machine of
// RFC 4271 §8: one Machine per configured or discovered peer, consuming
// events and producing a new State plus an ordered list of Effects for
// the session worker to carry out.
//
// Machine owns its own timers (connect-retry, hold, keepalive,
// delay-open, idle-hold) but performs no I/O itself: Step never blocks
// and never touches a network connection. The session worker polls the
// timers, turns message bytes into Events via the message package, and
// executes the Effects a Step call returns.
package fsm

import (
	"time"

	"go.uber.org/zap"

	"bgpd/message"
	"bgpd/timer"
)

// Default configured intervals, per §3's FSM record and §5's timeouts.
const (
	DefaultConnectRetryTime = 120 * time.Second
	DefaultHoldTime         = 90 * time.Second
	DefaultDelayOpenTime    = 5 * time.Second
	DefaultIdleHoldTime     = 30 * time.Second

	// maxIdleHoldTime is the cap on damp_peer_oscillations backoff.
	maxIdleHoldTime = 65505 * time.Second
	idleHoldStep    = 30 * time.Second
)

// Config holds the per-peer configuration and optional FSM attributes
// a Machine is built from; it is immutable after New.
type Config struct {
	LocalAS       uint32
	LocalRouterID uint32
	RemoteAS      uint32

	ConnectRetryTime time.Duration
	HoldTime         time.Duration
	DelayOpenTime    time.Duration
	IdleHoldTime     time.Duration

	AllowAutomaticStart             bool
	AllowAutomaticStop              bool
	DampPeerOscillations            bool
	PassiveTCPEstablishment         bool
	DelayOpen                       bool
	SendNotificationWithoutOpen     bool
	CollisionDetectEstablishedState bool

	// Capabilities this speaker advertises in its own OPEN messages.
	Capabilities message.Capabilities
}

func (c Config) withDefaults() Config {
	if c.ConnectRetryTime == 0 {
		c.ConnectRetryTime = DefaultConnectRetryTime
	}
	if c.HoldTime == 0 {
		c.HoldTime = DefaultHoldTime
	}
	if c.DelayOpenTime == 0 {
		c.DelayOpenTime = DefaultDelayOpenTime
	}
	if c.IdleHoldTime == 0 {
		c.IdleHoldTime = DefaultIdleHoldTime
	}
	return c
}

// Machine is one peer's finite state machine.
type Machine struct {
	cfg    Config
	logger *zap.Logger

	state               State
	connectRetryCounter uint16

	connectRetryTimer *timer.Timer
	holdTimer         *timer.Timer
	keepaliveTimer    *timer.Timer
	delayOpenTimer    *timer.Timer
	idleHoldTimer     *timer.Timer

	// idleHoldDuration grows by idleHoldStep on each oscillation while
	// DampPeerOscillations is set, capped at maxIdleHoldTime, and is
	// what idleHoldTimer is (re)started with.
	idleHoldDuration time.Duration

	// negotiated holds the post-OPEN-exchange values used from
	// OpenConfirm onward.
	negotiatedHoldTime      time.Duration
	negotiatedKeepaliveTime time.Duration
	fourOctetASN            bool
	remoteCapabilities      message.Capabilities
	remoteRouterID          [4]byte
}

// New builds a Machine in the Idle state.
func New(cfg Config, logger *zap.Logger) *Machine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		cfg:               cfg,
		logger:            logger,
		state:             Idle,
		connectRetryTimer: timer.New(cfg.ConnectRetryTime),
		holdTimer:         timer.New(cfg.HoldTime),
		keepaliveTimer:    timer.New(cfg.HoldTime / 3),
		delayOpenTimer:    timer.New(cfg.DelayOpenTime),
		idleHoldTimer:     timer.New(cfg.IdleHoldTime),
		idleHoldDuration:  cfg.IdleHoldTime,
	}
}

// State reports the machine's current state.
func (m *Machine) State() State { return m.state }

// ConnectRetryCounter reports the number of times this peer has
// oscillated out of a near-established state back to Idle.
func (m *Machine) ConnectRetryCounter() uint16 { return m.connectRetryCounter }

// NegotiatedHoldTime reports the hold time agreed during OPEN exchange;
// meaningful from OpenConfirm onward.
func (m *Machine) NegotiatedHoldTime() time.Duration { return m.negotiatedHoldTime }

// FourOctetASN reports whether both sides negotiated the 4-octet-ASN
// capability; meaningful from OpenConfirm onward. It is the value
// message.Update.Bytes takes as its fourByteASN argument; the session
// worker does not serialize outbound UPDATEs.
func (m *Machine) FourOctetASN() bool { return m.fourOctetASN }

// RemoteRouterID reports the BGP identifier the peer announced in its
// OPEN message; meaningful from OpenConfirm onward. The supervisor uses
// it to apply RFC 4271 §6.8's connection collision resolution rule via
// ShouldCloseOnCollision.
func (m *Machine) RemoteRouterID() [4]byte { return m.remoteRouterID }

// ConnectRetryTimer, HoldTimer, KeepaliveTimer, DelayOpenTimer, and
// IdleHoldTimer expose the machine's timers so the worker can poll
// IsElapsed on a fixed cadence, stop an elapsed timer, and translate the
// expiration into the corresponding *TimerExpires event.
func (m *Machine) ConnectRetryTimer() *timer.Timer { return m.connectRetryTimer }
func (m *Machine) HoldTimer() *timer.Timer         { return m.holdTimer }
func (m *Machine) KeepaliveTimer() *timer.Timer    { return m.keepaliveTimer }
func (m *Machine) DelayOpenTimer() *timer.Timer    { return m.delayOpenTimer }
func (m *Machine) IdleHoldTimer() *timer.Timer     { return m.idleHoldTimer }

// Step consumes one event, mutates the machine's state and timers, and
// returns the ordered effects the worker must execute. Step never
// blocks.
func (m *Machine) Step(ev Event) []Effect {
	m.logger.Debug("fsm event", zap.Stringer("state", m.state), zap.Stringer("event", ev.Kind))
	var effects []Effect
	switch m.state {
	case Idle:
		effects = m.stepIdle(ev)
	case Connect:
		effects = m.stepConnect(ev)
	case Active:
		effects = m.stepActive(ev)
	case OpenSent:
		effects = m.stepOpenSent(ev)
	case OpenConfirm:
		effects = m.stepOpenConfirm(ev)
	case Established:
		effects = m.stepEstablished(ev)
	}
	return effects
}

// goIdle is the common "oscillate back to Idle" path used by nearly
// every error/timeout transition in Connect/Active/OpenSent/
// OpenConfirm/Established: stop every timer, optionally bump the
// connect-retry counter, and apply damp_peer_oscillations backoff.
func (m *Machine) goIdle(incrementCounter bool) {
	m.connectRetryTimer.Stop()
	m.holdTimer.Stop()
	m.keepaliveTimer.Stop()
	m.delayOpenTimer.Stop()
	if incrementCounter {
		m.connectRetryCounter++
	}
	if m.cfg.DampPeerOscillations {
		m.idleHoldDuration += idleHoldStep
		if m.idleHoldDuration > maxIdleHoldTime {
			m.idleHoldDuration = maxIdleHoldTime
		}
		m.idleHoldTimer.Start(m.idleHoldDuration)
	} else {
		m.idleHoldTimer.Stop()
	}
	m.state = Idle
}

func sendNotification(code, subcode byte) Effect {
	return Effect{Kind: EffectSendNotification, Notification: &message.Notification{Code: code, Subcode: subcode}}
}

// largeHoldTime is the liberal hold timer RFC 4271 §8.2.2 specifies
// while an OPEN is outstanding and the real negotiated value is not yet
// known.
const largeHoldTime = 4 * time.Minute

// buildOpen constructs the OPEN message this machine sends, using the
// AS_TRANS (23456) placeholder plus the 4-octet-ASN capability when the
// configured local AS does not fit in 16 bits, per RFC 6793.
func (m *Machine) buildOpen() *message.Open {
	caps := m.cfg.Capabilities
	myAS := m.cfg.LocalAS
	var wireAS uint16
	if myAS > 0xFFFF {
		wireAS = 23456
		caps.FourOctetASN = true
		caps.FourOctetASNValue = myAS
	} else {
		wireAS = uint16(myAS)
		if caps.FourOctetASN {
			caps.FourOctetASNValue = myAS
		}
	}
	o := &message.Open{
		Version:      4,
		MyAS:         wireAS,
		HoldTime:     uint16(m.cfg.HoldTime / time.Second),
		Capabilities: caps,
	}
	id := m.cfg.LocalRouterID
	o.BGPIdentifier[0] = byte(id >> 24)
	o.BGPIdentifier[1] = byte(id >> 16)
	o.BGPIdentifier[2] = byte(id >> 8)
	o.BGPIdentifier[3] = byte(id)
	return o
}

// negotiateOpen validates a received OPEN against this machine's
// configuration (§4.1, §6.2) and, on success, records the negotiated
// hold/keepalive times and AS-width capability. It returns a non-nil
// Notification describing the rejection reason on failure.
func (m *Machine) negotiateOpen(o *message.Open) *message.Notification {
	if o.Version != 4 {
		return &message.Notification{Code: message.ErrCodeOpenMessage, Subcode: message.SubcodeUnsupportedVersionNumber}
	}
	if m.cfg.RemoteAS != 0 {
		remoteAS := uint32(o.MyAS)
		if o.MyAS == 23456 && o.Capabilities.FourOctetASN {
			remoteAS = o.Capabilities.FourOctetASNValue
		}
		if remoteAS != m.cfg.RemoteAS {
			return &message.Notification{Code: message.ErrCodeOpenMessage, Subcode: message.SubcodeBadPeerAS}
		}
	}
	if o.HoldTime != 0 && o.HoldTime < 3 {
		return &message.Notification{Code: message.ErrCodeOpenMessage, Subcode: message.SubcodeUnacceptableHoldTime}
	}
	var zero [4]byte
	localID := m.cfg.LocalRouterID
	var localIDBytes [4]byte
	localIDBytes[0] = byte(localID >> 24)
	localIDBytes[1] = byte(localID >> 16)
	localIDBytes[2] = byte(localID >> 8)
	localIDBytes[3] = byte(localID)
	if o.BGPIdentifier == zero || o.BGPIdentifier == localIDBytes {
		return &message.Notification{Code: message.ErrCodeOpenMessage, Subcode: message.SubcodeBadBGPIdentifier}
	}

	remoteHold := time.Duration(o.HoldTime) * time.Second
	negotiated := m.cfg.HoldTime
	if remoteHold < negotiated {
		negotiated = remoteHold
	}
	m.negotiatedHoldTime = negotiated
	m.negotiatedKeepaliveTime = negotiated / 3
	m.fourOctetASN = m.cfg.Capabilities.FourOctetASN && o.Capabilities.FourOctetASN
	m.remoteCapabilities = o.Capabilities
	m.remoteRouterID = o.BGPIdentifier
	return nil
}

package session

import (
	"net"
	"time"

	"bgpd/fsm"
)

// ControlEvent is the single inbound message shape a Worker's control
// channel accepts: either an administrative FSM event (ManualStart,
// ManualStop, AutomaticStart, ...) or a hand-off of an inbound TCP
// connection the supervisor accepted on its behalf, per §4.4/§4.5.
type ControlEvent struct {
	Kind EventKind
	// Admin is meaningful when Kind is ControlAdmin: the FSM event to
	// inject (ManualStart, ManualStop, AutomaticStart, ...).
	Admin fsm.EventKind
	// Conn is meaningful when Kind is ControlInboundConn: the accepted
	// connection to adopt, already matched to this peer by remote
	// address (and, when the peer's session was in OpenSent or later,
	// by the supervisor's collision-resolution rule).
	Conn net.Conn
}

// EventKind distinguishes the two shapes a ControlEvent can carry.
type EventKind int

const (
	ControlAdmin EventKind = iota
	ControlInboundConn
)

// Status is a snapshot of a worker's session for observability,
// surfaced on its status channel after every state transition.
type Status struct {
	State               fsm.State
	ConnectRetryCounter uint16
	NegotiatedHoldTime  time.Duration
	// RemoteRouterID is the peer's announced BGP identifier, valid from
	// OpenConfirm onward; zero before then.
	RemoteRouterID [4]byte
}

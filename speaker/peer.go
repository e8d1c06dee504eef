package speaker

import (
	"net/netip"
	"sync/atomic"
	"time"

	"bgpd/fsm"
	"bgpd/session"
)

// PeerType distinguishes an Internal (iBGP, same AS) peer from an
// External (eBGP) one, per spec.md §3.
type PeerType int

const (
	External PeerType = iota
	Internal
)

func (t PeerType) String() string {
	if t == Internal {
		return "internal"
	}
	return "external"
}

// Peer is one neighbor's static identity plus a live view of its
// session.Worker's state, published by the supervisor's status pump.
// Invariant: the supervisor holds at most one Peer per RemoteIP.
type Peer struct {
	RemoteIP netip.Addr
	RemoteAS uint32
	Type     PeerType

	status atomic.Value // session.Status
}

func newPeer(ip netip.Addr, remoteAS, myAS uint32) *Peer {
	t := External
	if remoteAS != 0 && remoteAS == myAS {
		t = Internal
	}
	return &Peer{RemoteIP: ip, RemoteAS: remoteAS, Type: t}
}

// State reports the peer's last observed FSM state.
func (p *Peer) State() fsm.State { return p.snapshot().State }

// NegotiatedHoldTime reports the last negotiated hold time; valid from
// OpenConfirm onward.
func (p *Peer) NegotiatedHoldTime() time.Duration { return p.snapshot().NegotiatedHoldTime }

// ConnectRetryCounter reports the peer's oscillation count.
func (p *Peer) ConnectRetryCounter() uint16 { return p.snapshot().ConnectRetryCounter }

func (p *Peer) remoteRouterID() [4]byte { return p.snapshot().RemoteRouterID }

func (p *Peer) snapshot() session.Status {
	v := p.status.Load()
	if v == nil {
		return session.Status{}
	}
	return v.(session.Status)
}

func (p *Peer) storeStatus(s session.Status) { p.status.Store(s) }

package speaker

import (
	"context"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"bgpd/fsm"
	"bgpd/session"
)

// acceptLoop accepts inbound TCP connections on ln and routes each to
// the matching peer's worker, or the accept_connections_unconfigured_peers
// policy when no configured neighbor matches, per §4.5.
func (s *Supervisor) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.handleInbound(ctx, conn)
	}
}

func (s *Supervisor) handleInbound(ctx context.Context, conn net.Conn) {
	ip, ok := remotePeerAddr(conn)
	if !ok {
		conn.Close()
		return
	}

	s.mu.Lock()
	entry, known := s.peers[ip]
	if !known {
		if !s.cfg.AcceptConnectionsUnconfiguredPeers {
			s.mu.Unlock()
			s.logger.Debug("rejecting connection from unconfigured peer", zap.String("peer", ip.String()))
			conn.Close()
			return
		}
		entry = s.startPeer(ctx, ip, 0, 0, true)
		s.peers[ip] = entry
	}
	s.mu.Unlock()

	switch entry.peer.State() {
	case fsm.OpenSent, fsm.OpenConfirm, fsm.Established:
		s.resolveCollision(entry, conn)
	default:
		entry.worker.Control() <- session.ControlEvent{Kind: session.ControlInboundConn, Conn: conn}
	}
}

// resolveCollision implements RFC 4271 §6.8: when an inbound connection
// arrives for a peer already past Connect/Active on another connection,
// the side whose local router ID is numerically lower closes its own
// connection. If ours is lower, we dump the existing Machine back to
// Idle (via OpenCollisionDump) and hand off the new connection; the two
// control events are queued in order on the worker's channel, so the
// dump always applies before the hand-off. Otherwise the new connection
// is the loser and is simply closed.
func (s *Supervisor) resolveCollision(entry *peerEntry, conn net.Conn) {
	localID := addrToUint32(s.cfg.RouterID)
	remoteID := beUint32(entry.peer.remoteRouterID())
	if !fsm.ShouldCloseOnCollision(localID, remoteID) {
		conn.Close()
		return
	}
	entry.worker.Control() <- session.ControlEvent{Kind: session.ControlAdmin, Admin: fsm.OpenCollisionDump}
	entry.worker.Control() <- session.ControlEvent{Kind: session.ControlInboundConn, Conn: conn}
}

func remotePeerAddr(conn net.Conn) (netip.Addr, bool) {
	tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return netip.Addr{}, false
	}
	ip, ok := netip.AddrFromSlice(tcpAddr.IP)
	if !ok {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func beUint32(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

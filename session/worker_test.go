package session

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"bgpd/fsm"
	"bgpd/message"
)

func establishCfg() fsm.Config {
	return fsm.Config{
		LocalAS:                 65001,
		LocalRouterID:           0x0A000001, // 10.0.0.1
		RemoteAS:                65002,
		ConnectRetryTime:        50 * time.Millisecond,
		HoldTime:                90 * time.Second,
		PassiveTCPEstablishment: true,
	}
}

// fakePeer is a minimal scripted remote BGP speaker driving the other
// end of a net.Conn, used to exercise Worker without a real socket.
type fakePeer struct {
	conn    net.Conn
	buf     []byte
	pending [][]byte
}

func (f *fakePeer) next(t *testing.T) []byte {
	t.Helper()
	for len(f.pending) == 0 {
		chunk := make([]byte, 4096)
		n, err := f.conn.Read(chunk)
		if err != nil {
			t.Fatalf("fakePeer read: %v", err)
		}
		f.buf = append(f.buf, chunk[:n]...)
		msgs, residual, err := message.ExtractMessages(f.buf)
		if err != nil {
			t.Fatalf("fakePeer ExtractMessages: %v", err)
		}
		f.pending = append(f.pending, msgs...)
		f.buf = append([]byte(nil), residual...)
	}
	m := f.pending[0]
	f.pending = f.pending[1:]
	return m
}

func (f *fakePeer) write(t *testing.T, b []byte) {
	t.Helper()
	if _, err := f.conn.Write(b); err != nil {
		t.Fatalf("fakePeer write: %v", err)
	}
}

func waitForState(t *testing.T, statusCh <-chan Status, want fsm.State, timeout time.Duration) Status {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case s := <-statusCh:
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func TestWorkerEstablishesSessionAndDeliversRoute(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	routes := make(chan RouteDelta, 4)
	w := NewWorker(netip.MustParseAddr("10.0.0.2"), establishCfg(), nil, routes)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	peer := &fakePeer{conn: clientConn}

	w.Control() <- ControlEvent{Kind: ControlAdmin, Admin: fsm.ManualStartPassive}
	w.Control() <- ControlEvent{Kind: ControlInboundConn, Conn: serverConn}

	openBytes := peer.next(t)
	if _, err := message.ParseOpen(openBytes); err != nil {
		t.Fatalf("ParseOpen(worker's OPEN): %v", err)
	}

	remoteOpen := &message.Open{Version: 4, MyAS: 65002, HoldTime: 90, BGPIdentifier: [4]byte{10, 0, 0, 2}}
	peer.write(t, remoteOpen.Bytes())

	ka := peer.next(t)
	if _, err := message.ParseKeepalive(ka); err != nil {
		t.Fatalf("expected KEEPALIVE from worker, got parse error: %v", err)
	}

	peer.write(t, (&message.Keepalive{}).Bytes())

	st := waitForState(t, w.Status(), fsm.Established, time.Second)
	if st.NegotiatedHoldTime != 90*time.Second {
		t.Errorf("negotiated hold time = %v, want 90s", st.NegotiatedHoldTime)
	}

	update := &message.Update{
		PathAttributes: []message.PathAttribute{
			{Type: message.AttrOrigin, Origin: message.OriginIGP},
			{Type: message.AttrASPath},
			{Type: message.AttrNextHop, NextHop: [4]byte{10, 0, 0, 2}},
		},
		NLRI: []message.NLRI{{PrefixLen: 24, Prefix: netip.MustParseAddr("192.0.2.0")}},
	}
	peer.write(t, update.Bytes(false))

	select {
	case delta := <-routes:
		if delta.PeerIP.String() != "10.0.0.2" {
			t.Errorf("delta.PeerIP = %v, want 10.0.0.2", delta.PeerIP)
		}
		if len(delta.Added) != 1 || delta.Added[0].NLRI.PrefixLen != 24 {
			t.Errorf("unexpected added routes: %+v", delta.Added)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for route delta")
	}

	// Drain further writes (the worker's Cease NOTIFICATION on shutdown)
	// so Run's final write does not block on this synchronous pipe.
	go func() {
		discard := make([]byte, 4096)
		for {
			if _, err := clientConn.Read(discard); err != nil {
				return
			}
		}
	}()

	cancel()
	<-runErr
}

func TestWorkerHoldTimerExpiry(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	cfg := establishCfg()
	cfg.HoldTime = 40 * time.Millisecond
	w := NewWorker(netip.MustParseAddr("10.0.0.3"), cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	peer := &fakePeer{conn: clientConn}

	w.Control() <- ControlEvent{Kind: ControlAdmin, Admin: fsm.ManualStartPassive}
	w.Control() <- ControlEvent{Kind: ControlInboundConn, Conn: serverConn}

	if _, err := message.ParseOpen(peer.next(t)); err != nil {
		t.Fatalf("ParseOpen: %v", err)
	}

	remoteOpen := &message.Open{Version: 4, MyAS: 65002, HoldTime: 3, BGPIdentifier: [4]byte{10, 0, 0, 3}}
	peer.write(t, remoteOpen.Bytes())

	if _, err := message.ParseKeepalive(peer.next(t)); err != nil {
		t.Fatalf("expected KEEPALIVE: %v", err)
	}
	peer.write(t, (&message.Keepalive{}).Bytes())

	waitForState(t, w.Status(), fsm.Established, time.Second)

	// No further traffic; the hold timer (negotiated to 40ms) must fire
	// and tear the session down with NOTIFICATION(HoldTimerExpired).
	notif := peer.next(t)
	n, err := message.ParseNotification(notif)
	if err != nil {
		t.Fatalf("ParseNotification: %v", err)
	}
	if n.Code != message.ErrCodeHoldTimerExpired {
		t.Errorf("notification code = %d, want ErrCodeHoldTimerExpired", n.Code)
	}

	st := waitForState(t, w.Status(), fsm.Idle, time.Second)
	if st.ConnectRetryCounter != 1 {
		t.Errorf("connect retry counter = %d, want 1", st.ConnectRetryCounter)
	}
}

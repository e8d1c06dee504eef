package session

import (
	"net/netip"

	"bgpd/message"
)

// Route is the in-memory representation of one reachable destination
// learned from a peer's UPDATE: an NLRI paired with the mandatory and
// optional path attributes that applied to it, per §3.
type Route struct {
	NLRI            message.NLRI
	Origin          message.Origin
	ASPath          []message.ASPathSegment
	NextHop         [4]byte
	LocalPref       *uint32
	MED             *uint32
	AtomicAggregate bool
	Aggregator      *message.Aggregator
}

// RouteDelta is one UPDATE's worth of additions and withdrawals for a
// single peer, delivered to the supervisor's route channel in the order
// the worker decoded them.
type RouteDelta struct {
	PeerIP    netip.Addr
	Added     []Route
	Withdrawn []message.NLRI
}

// routesFromUpdate builds one Route per NLRI carried in u, sharing the
// attributes that applied to the whole NLRI list (RFC 4271 §4.3: a
// single UPDATE's path attributes apply to every NLRI it carries).
// ParseUpdate already rejects any NLRI-bearing UPDATE missing Origin,
// AsPath, or NextHop, so this never needs to report an error itself.
func routesFromUpdate(u *message.Update) []Route {
	if len(u.NLRI) == 0 {
		return nil
	}
	var base Route
	for _, a := range u.PathAttributes {
		switch a.Type {
		case message.AttrOrigin:
			base.Origin = a.Origin
		case message.AttrASPath:
			base.ASPath = a.ASPath
		case message.AttrNextHop:
			base.NextHop = a.NextHop
		case message.AttrLocalPref:
			v := a.LocalPref
			base.LocalPref = &v
		case message.AttrMultiExitDisc:
			v := a.MED
			base.MED = &v
		case message.AttrAtomicAggregate:
			base.AtomicAggregate = true
		case message.AttrAggregator:
			agg := a.Aggregator
			base.Aggregator = &agg
		}
	}
	routes := make([]Route, len(u.NLRI))
	for i, n := range u.NLRI {
		r := base
		r.NLRI = n
		routes[i] = r
	}
	return routes
}

// Package metrics exposes per-peer BGP session observability as
// Prometheus collectors (§4.7), registered on a worker's startup and
// released on its exit so peers accepted under
// accept_connections_unconfigured_peers don't leak label series forever.
//
// Grounded on the package-level *Vec + MustRegister idiom of
// _examples/pobradovic08-route-beacon-ri/internal/metrics/metrics.go,
// generalized from its package-global vars into a Registry value so a
// process can own (and in tests, discard) its own metric set rather
// than sharing prometheus.DefaultRegisterer implicitly.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry owns the BGP-speaker metric collectors registered against a
// single prometheus.Registerer (cmd/bgpd passes its own
// prometheus.NewRegistry, which httpapi serves via promhttp.HandlerFor).
type Registry struct {
	reg prometheus.Registerer

	fsmState    *prometheus.GaugeVec
	established *prometheus.CounterVec
	messages    *prometheus.CounterVec
	routes      *prometheus.GaugeVec
}

// New builds and registers the collector set against reg. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Registry{
		reg: reg,
		fsmState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bgpd_fsm_state",
			Help: "Current FSM state per peer (Idle=0 .. Established=5).",
		}, []string{"peer"}),
		established: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bgpd_session_established_total",
			Help: "Number of times a peer session reached Established.",
		}, []string{"peer"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bgpd_messages_total",
			Help: "BGP messages processed per peer, type, and direction.",
		}, []string{"peer", "type", "direction"}),
		routes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bgpd_routes_received",
			Help: "Routes currently held from a peer's UPDATE stream.",
		}, []string{"peer"}),
	}
	r.reg.MustRegister(r.fsmState, r.established, r.messages, r.routes)
	return r
}

// PeerHandle is the label-bound view of the registry a single
// session.Worker updates directly; returned by Register and released by
// Unregister.
type PeerHandle struct {
	peer string
	reg  *Registry

	State       prometheus.Gauge
	Established prometheus.Counter
	Routes      prometheus.Gauge
}

// MessageCounter returns the counter for one (type, direction) pair,
// e.g. ("update", "in") or ("keepalive", "out").
func (h *PeerHandle) MessageCounter(typ, direction string) prometheus.Counter {
	return h.reg.messages.WithLabelValues(h.peer, typ, direction)
}

// Register binds a new PeerHandle to peer's label value.
func (r *Registry) Register(peer string) *PeerHandle {
	return &PeerHandle{
		peer:        peer,
		reg:         r,
		State:       r.fsmState.WithLabelValues(peer),
		Established: r.established.WithLabelValues(peer),
		Routes:      r.routes.WithLabelValues(peer),
	}
}

// Unregister drops every series labeled with peer, including the
// type/direction fan-out on the messages counter.
func (r *Registry) Unregister(peer string) {
	r.fsmState.DeleteLabelValues(peer)
	r.established.DeleteLabelValues(peer)
	r.routes.DeleteLabelValues(peer)
	r.messages.DeletePartialMatch(prometheus.Labels{"peer": peer})
}

// Package httpapi exposes the speaker's /metrics endpoint, per SPEC_FULL.md
// §4.7.
//
// Grounded on _examples/pobradovic08-route-beacon-ri/internal/http's
// Server wrapper around *http.Server (separate Listen from Serve so
// Start can report a bind error synchronously, and a dedicated
// Shutdown for graceful drain), trimmed to the one handler this
// speaker needs: no database or consumer readiness checks apply here,
// so /readyz is dropped and /healthz just reports the process is up.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds an HTTP server exposing reg's metrics on addr. reg
// may be nil, in which case /metrics serves the default registry.
func NewServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start binds the listening socket and serves in the background. A
// bind failure is returned synchronously; failures after that point
// are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("metrics server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

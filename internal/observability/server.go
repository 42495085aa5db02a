// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker reports whether the service can serve requests. It is
// called with the probe request's context.
type ReadinessChecker func(ctx context.Context) bool

// Pinger is anything whose health can be probed, such as a session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingReadiness returns a ReadinessChecker that pings p with the given timeout.
func PingReadiness(p Pinger, timeout time.Duration) ReadinessChecker {
	return func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", "error", err)
			return false
		}
		return true
	}
}

// Metrics contains the identity service's Prometheus metrics.
type Metrics struct {
	TokenVerifications *prometheus.CounterVec
	SessionOperations  *prometheus.CounterVec
	PhoneValidations   *prometheus.CounterVec
}

// NewMetrics creates and registers the identity metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokenVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_token_verifications_total",
				Help: "Total number of access token verifications by outcome",
			},
			[]string{"outcome"},
		),
		SessionOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_session_operations_total",
				Help: "Total number of remember-me operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		PhoneValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_phone_validations_total",
				Help: "Total number of phone number validations by use case and outcome",
			},
			[]string{"use_case", "outcome"},
		),
	}

	reg.MustRegister(m.TokenVerifications)
	reg.MustRegister(m.SessionOperations)
	reg.MustRegister(m.PhoneValidations)

	return m
}

// RecordTokenVerification counts one token verification.
func (m *Metrics) RecordTokenVerification(outcome string) {
	m.TokenVerifications.WithLabelValues(outcome).Inc()
}

// RecordSessionOperation counts one remember-me operation.
func (m *Metrics) RecordSessionOperation(op, outcome string) {
	m.SessionOperations.WithLabelValues(op, outcome).Inc()
}

// RecordPhoneValidation counts one phone validation. outcome is "ok" or the
// rejection reason.
func (m *Metrics) RecordPhoneValidation(useCase, outcome string) {
	m.PhoneValidations.WithLabelValues(useCase, outcome).Inc()
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := NewMetrics(registry)

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}

	return s
}

// Metrics returns the identity metrics. The result satisfies token.Recorder
// and session.Recorder.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
// Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Kubernetes-style health probes
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	// Create buffered error channel so the goroutine doesn't block
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	// Use CompareAndSwap to atomically transition from running to stopped.
	// This prevents a race where a concurrent Start() could succeed between
	// checking the running state and setting it to false.
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleLiveness returns 200 while the process is running.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the session store answers, or 503 if not.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady(r.Context()) {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}

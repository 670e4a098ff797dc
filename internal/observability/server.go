// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// Package-level instruments so delivery-path code can record events without
// holding a Server reference.
var (
	liveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parlor_live_sessions",
		Help: "Number of currently connected sessions",
	})
	publishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_publishes_total",
			Help: "Total topic publishes by topic kind",
		},
		[]string{"kind"},
	)
	deliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_delivery_failures_total",
			Help: "Total soft delivery failures by reason",
		},
		[]string{"reason"},
	)
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_cache_lookups_total",
			Help: "Total notification cache lookups by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_access_decisions_total",
			Help: "Total proxy authorization decisions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parlor_rate_limited_total",
		Help: "Total requests rejected by the per-user rate limiter",
	})
)

// SetLiveSessions records the current number of connected sessions.
func SetLiveSessions(n int) {
	liveSessions.Set(float64(n))
}

// RecordPublish increments the publish counter for a topic. Only the topic
// kind (prefix before the first colon) is used as a label to keep
// cardinality bounded.
func RecordPublish(topic string) {
	kind := topic
	if i := strings.IndexByte(topic, ':'); i >= 0 {
		kind = topic[:i]
	}
	publishesTotal.WithLabelValues(kind).Inc()
}

// RecordDeliveryFailure increments the soft delivery failure counter.
func RecordDeliveryFailure(reason string) {
	deliveryFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordCacheLookup records a notification cache hit or miss.
func RecordCacheLookup(operation string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookupsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAccessDecision records a proxy authorization decision.
func RecordAccessDecision(operation string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	accessDecisionsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRateLimited increments the rate-limit rejection counter.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Create a new registry to avoid polluting the global one
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Register delivery-core metrics
	registry.MustRegister(
		liveSessions,
		publishesTotal,
		deliveryFailuresTotal,
		cacheLookupsTotal,
		accessDecisionsTotal,
		rateLimitedTotal,
	)

	return &Server{
		addr:     addr,
		registry: registry,
		isReady:  readinessChecker,
	}
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

// handleLiveness returns 200 if the process is running.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the service is ready to accept connections,
// or 503 if not ready.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}

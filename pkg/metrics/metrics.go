// Package metrics exposes the Prometheus registry shared by the docdb client,
// its cache and throttle layers, and the demo programs. Metrics themselves are
// defined with promauto in the packages that record them.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the registerer promauto writes to.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMux returns a mux with /metrics and a /health probe.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Server serves NewMux on an address until its context ends.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
}

// Listen binds addr (":9090", "127.0.0.1:0", ...) without serving yet.
func Listen(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{
			Handler:           NewMux(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("Serving metrics")
		errCh <- s.srv.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("Metrics server stopped")
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/docdb):
//   - docdb_requests_total{operation, status} (Counter): requests by operation and HTTP status,
//     plus "cache_hit" and "network_error"
//   - docdb_request_duration_seconds{operation} (Histogram): duration including retries
//   - docdb_request_charge_total{operation} (Counter): request units charged (x-ms-request-charge)
//   - docdb_errors_total{class} (Counter): errors by class (client, throttled, server, network)
//
// Throttle Metrics (pkg/ratelimit):
//   - docdb_last_request_charge (Gauge): request charge of the latest response
//   - docdb_throttled_responses_total (Counter): 429 responses
//   - docdb_throttle_wait_seconds (Histogram): time spent waiting for a throttle window
//
// Cache Metrics (pkg/cache):
//   - docdb_cache_hits_total{kind} (Counter): cache hits by resource kind (doc, media)
//   - docdb_cache_misses_total (Counter): cache misses
//   - docdb_cache_written_bytes_total (Counter): bytes written to Redis
//   - docdb_304_responses_total (Counter): 304 Not Modified responses
//   - docdb_conditional_requests_total (Counter): requests sent with If-None-Match
//   - docdb_cache_errors_total{operation} (Counter): cache operation errors
//
// Retry Metrics (internal/retry):
//   - http_client_retries_total{client, error_class} (Counter)
//   - http_client_retry_backoff_seconds{client, error_class} (Histogram)
//   - http_client_retry_exhausted_total{client, error_class} (Counter)
//
// Demo Metrics (pkg/demos):
//   - docdb_bulk_documents_total{result} (Counter): bulk upload outcomes (created, failed)
//
// Example Prometheus Queries:
//
//   # Request units per second by operation
//   sum by (operation) (rate(docdb_request_charge_total[1m]))
//
//   # Throttle rate
//   rate(docdb_throttled_responses_total[5m]) / rate(docdb_requests_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(docdb_request_duration_seconds_bucket[5m]))

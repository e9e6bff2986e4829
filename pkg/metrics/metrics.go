// Package metrics provides the metrics endpoint for pagetable.
// All metrics are defined in their respective packages (client, pagination, table, monitor)
// to maintain modularity and avoid circular dependencies.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Handler returns the HTTP handler exposing /metrics and /health.
// Metrics registered via promauto land in the default registry served here.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// Server serves the metrics endpoint while a fetch runs.
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// Serve starts serving Handler on addr in the background.
func Serve(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s := &Server{
		srv:      &http.Server{Handler: Handler(), ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		done:     make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	log.Info().Str("component", "metrics").Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - pagetable_requests_total{host, status} (Counter): Upstream requests by host and HTTP status
//   - pagetable_request_duration_seconds{host} (Histogram): Request duration by host
//   - pagetable_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Fetch Metrics (pkg/pagination):
//   - pagetable_pages_total{dataset, outcome} (Counter): Page requests by outcome (ok, failed, skipped)
//   - pagetable_fetches_total{dataset, outcome} (Counter): Fetches by outcome (ok, partial, error)
//   - pagetable_fetch_duration_seconds{dataset} (Histogram): Complete fetch duration
//   - pagetable_rows_total{dataset} (Counter): Normalized rows produced
//
// Normalization Metrics (pkg/table):
//   - pagetable_rows_dropped_total{reason} (Counter): Rows dropped under the skip policy
//   - pagetable_coerce_missing_total{type} (Counter): Values coerced to missing
//
// Monitoring Metrics (pkg/monitor):
//   - pagetable_monitor_count_errors_total (Counter): Request counting failures
//
// Example Prometheus Queries:
//
//   # Partial fetch rate
//   sum(rate(pagetable_fetches_total{outcome="partial"}[1h])) / sum(rate(pagetable_fetches_total[1h]))
//
//   # Upstream error rate by class
//   rate(pagetable_errors_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(pagetable_request_duration_seconds_bucket[5m]))

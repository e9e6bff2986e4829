package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var countErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pagetable_monitor_count_errors_total",
	Help: "Total request counting failures",
})

// CountingTransport counts every outgoing request before delegating to Base.
// A counting failure is logged and never fails the request.
type CountingTransport struct {
	Base    http.RoundTripper
	Counter Counter
}

// NewCountingTransport wraps base. A nil base uses http.DefaultTransport.
func NewCountingTransport(base http.RoundTripper, counter Counter) *CountingTransport {
	return &CountingTransport{Base: base, Counter: counter}
}

// RoundTrip implements http.RoundTripper.
func (t *CountingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Counter != nil {
		key := Key(req.URL)
		if err := t.Counter.Inc(req.Context(), key); err != nil {
			countErrorsTotal.Inc()
			log.Warn().
				Err(err).
				Str("component", "monitor").
				Str("key", key).
				Msg("Failed to count request")
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

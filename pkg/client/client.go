// Package client provides the HTTP client every page fetch goes through:
// default headers, timeout, proxy selection, request counting and error
// classification.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/pagetable/pkg/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"
)

// Prometheus metrics for upstream requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetable_requests_total",
		Help: "Total upstream requests by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagetable_request_duration_seconds",
		Help:    "Upstream request duration in seconds by host",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagetable_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// ProxyMode selects how the proxy is applied.
type ProxyMode string

const (
	// ProxyTransport sets Config.Proxy on the transport.
	ProxyTransport ProxyMode = "transport"

	// ProxyEnv reads HTTP_PROXY, HTTPS_PROXY and NO_PROXY on every request.
	ProxyEnv ProxyMode = "env"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "pagetable/1.0 (+https://github.com/Sternrassler/pagetable)"

// Client wraps an http.Client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request.
	UserAgent string

	// Timeout bounds a single request including reading the body.
	Timeout time.Duration

	// Headers are sent with every request unless the request sets them itself.
	Headers http.Header

	// Proxy URL, used in ProxyTransport mode.
	Proxy string

	// ProxyMode defaults to ProxyTransport.
	ProxyMode ProxyMode

	// Counter, when set, counts every request per endpoint.
	Counter monitor.Counter

	// Transport overrides the base transport (for testing).
	Transport http.RoundTripper
}

// DefaultConfig returns a default configuration.
func DefaultConfig(userAgent string) Config {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		ProxyMode: ProxyTransport,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.ProxyMode == "" {
		cfg.ProxyMode = ProxyTransport
	}

	logger := log.With().Str("component", "http-client").Logger()

	c := &Client{config: cfg, logger: logger}

	base := cfg.Transport
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		switch cfg.ProxyMode {
		case ProxyTransport:
			transport.Proxy = nil
			if cfg.Proxy != "" {
				proxyURL, err := url.Parse(cfg.Proxy)
				if err != nil {
					return nil, fmt.Errorf("parse proxy url: %w", err)
				}
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		case ProxyEnv:
			if cfg.Proxy != "" {
				return nil, fmt.Errorf("proxy url is not used in %q mode; set it through the environment", ProxyEnv)
			}
			transport.Proxy = proxyFromEnvironment
		default:
			return nil, fmt.Errorf("unknown proxy mode %q", cfg.ProxyMode)
		}
		base = transport
	}

	if cfg.Counter != nil {
		base = monitor.NewCountingTransport(base, cfg.Counter)
	}

	c.httpClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: base,
	}

	logger.Debug().
		Str("user_agent", cfg.UserAgent).
		Dur("timeout", cfg.Timeout).
		Str("proxy_mode", string(cfg.ProxyMode)).
		Bool("proxy", cfg.Proxy != "").
		Bool("counting", cfg.Counter != nil).
		Msg("HTTP client created")

	return c, nil
}

// proxyFromEnvironment re-reads the proxy environment on every request so a
// scoped proxy acquired after client construction takes effect.
func proxyFromEnvironment(req *http.Request) (*url.URL, error) {
	return httpproxy.FromEnvironment().ProxyFunc()(req.URL)
}

// Do performs an HTTP request. A status >= 400 is returned as *UpstreamError
// with the response body closed. Nothing is retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	for key, values := range c.config.Headers {
		if req.Header.Get(key) == "" {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := classifyError(nil, err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(host, "network_error").Inc()
		c.logger.Error().Err(err).Str("host", host).Msg("HTTP request failed")
		return nil, &UpstreamError{
			ErrorClass: class,
			URL:        req.URL.String(),
			Message:    "request failed",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()

		class := classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(class)).Inc()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))

		c.logger.Warn().
			Str("host", host).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")

		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			URL:        req.URL.String(),
			Message:    resp.Status,
			Body:       string(body),
		}
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

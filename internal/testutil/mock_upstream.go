// Package testutil provides testing utilities for pagetable.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MockResponse defines a canned upstream response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable mock data provider for testing.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastRequestBody   []byte
	pageValues        []string
}

// NewMockUpstream creates a new mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestBody = body
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastRequestBody = nil
	m.pageValues = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// PageValues returns the page parameter values received by paged endpoints, in order.
func (m *MockUpstream) PageValues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.pageValues...)
}

// PagedEndpoint describes a JSON endpoint serving TotalRows generated rows.
//
// Bodies look like {"rows": [...], "totalPages": N, "total": M}; either total
// is omitted when its Report flag is false.
type PagedEndpoint struct {
	PageParam string // default "page"
	SizeParam string // default "size"
	FirstPage int
	TotalRows int

	ReportPages bool
	ReportCount bool

	// FailPages maps a page parameter value to the status returned for it.
	FailPages map[int]int

	// Row builds row i (0-based across all pages). Defaults to {"id": i, "name": "row-i"}.
	Row func(i int) map[string]any
}

// SetPagedEndpoint serves a generated paged dataset on path.
func (m *MockUpstream) SetPagedEndpoint(path string, ep PagedEndpoint) {
	if ep.PageParam == "" {
		ep.PageParam = "page"
	}
	if ep.SizeParam == "" {
		ep.SizeParam = "size"
	}
	if ep.Row == nil {
		ep.Row = func(i int) map[string]any {
			return map[string]any{"id": i, "name": "row-" + strconv.Itoa(i)}
		}
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		raw := q.Get(ep.PageParam)

		m.mu.Lock()
		m.pageValues = append(m.pageValues, raw)
		m.mu.Unlock()

		value, err := strconv.Atoi(raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		size, err := strconv.Atoi(q.Get(ep.SizeParam))
		if err != nil || size <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if status, ok := ep.FailPages[value]; ok {
			w.WriteHeader(status)
			w.Write([]byte(`{"error": "injected failure"}`))
			return
		}

		start := (value - ep.FirstPage) * size
		rows := []map[string]any{}
		for i := start; i < start+size && i < ep.TotalRows; i++ {
			if i >= 0 {
				rows = append(rows, ep.Row(i))
			}
		}

		payload := map[string]any{"rows": rows}
		if ep.ReportPages {
			payload["totalPages"] = (ep.TotalRows + size - 1) / size
		}
		if ep.ReportCount {
			payload["total"] = ep.TotalRows
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload)
	})
}

// NewJSONResponse creates a 200 OK response with a JSON body.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewHTMLResponse creates a 200 OK response with an HTML body in the given charset.
func NewHTMLResponse(body []byte, charset string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "text/html; charset=" + charset,
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

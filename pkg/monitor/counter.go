// Package monitor counts upstream requests per endpoint.
//
// Counting is composed into the HTTP client as a RoundTripper middleware
// (CountingTransport). Counts live either in process memory or in a Redis
// hash shared by every process pointing at the same key prefix.
package monitor

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Counter records request counts keyed by endpoint.
type Counter interface {
	// Inc adds one to key.
	Inc(ctx context.Context, key string) error

	// Count returns the count for key; unknown keys count zero.
	Count(ctx context.Context, key string) (int64, error)

	// Snapshot returns all counts.
	Snapshot(ctx context.Context) (map[string]int64, error)

	// Reset clears all counts.
	Reset(ctx context.Context) error
}

// Key derives the counting key for a request URL: host plus path without a trailing slash.
func Key(u *url.URL) string {
	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}
	return u.Host + path
}

// SortedKeys returns the keys of a snapshot in lexical order.
func SortedKeys(snapshot map[string]int64) []string {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

// Inc implements Counter.
func (m *MemoryCounter) Inc(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return nil
}

// Count implements Counter.
func (m *MemoryCounter) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

// Snapshot implements Counter.
func (m *MemoryCounter) Snapshot(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, nil
}

// Reset implements Counter.
func (m *MemoryCounter) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int64)
	return nil
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/pagetable/pkg/client"
	"github.com/Sternrassler/pagetable/pkg/monitor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagetable.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.HTTP.UserAgent != client.DefaultUserAgent {
		t.Errorf("UserAgent = %q", cfg.HTTP.UserAgent)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.ProxyMode != "transport" {
		t.Errorf("ProxyMode = %q", cfg.HTTP.ProxyMode)
	}
	if cfg.Monitor.Enabled {
		t.Error("monitoring should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
http:
  user_agent: "pagefetch-test/1.0"
  timeout: 5s
  proxy: "http://127.0.0.1:3128"
  headers:
    Referer: "https://data.eastmoney.com/"
fetch:
  page_failure: skip
  page_delay: 250ms
monitor:
  enabled: true
  backend: memory
log:
  level: debug
  file: /tmp/pagefetch.log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.UserAgent != "pagefetch-test/1.0" || cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Fetch.PageFailure != "skip" || cfg.Fetch.PageDelay != 250*time.Millisecond {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxBackups != 3 {
		t.Errorf("Log = %+v", cfg.Log)
	}

	cc := cfg.Client(nil)
	if cc.Proxy != "http://127.0.0.1:3128" || cc.Timeout != 5*time.Second {
		t.Errorf("client config = %+v", cc)
	}
	if cc.Headers.Get("Referer") != "https://data.eastmoney.com/" {
		t.Errorf("Headers = %v", cc.Headers)
	}

	lc := cfg.Logging()
	if lc.File != "/tmp/pagefetch.log" || lc.Level != "debug" {
		t.Errorf("logging config = %+v", lc)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "http:\n  timeout: 5s\n")
	t.Setenv("PAGETABLE_HTTP_TIMEOUT", "12s")
	t.Setenv("PAGETABLE_FETCH_ROW_FAILURE", "skip")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Timeout != 12*time.Second {
		t.Errorf("Timeout = %s, want 12s", cfg.HTTP.Timeout)
	}
	if cfg.Fetch.RowFailure != "skip" {
		t.Errorf("RowFailure = %q", cfg.Fetch.RowFailure)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"empty user agent", func(c *Config) { c.HTTP.UserAgent = "" }, "user_agent"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "timeout"},
		{"bad proxy mode", func(c *Config) { c.HTTP.ProxyMode = "socks" }, "proxy_mode"},
		{"relative proxy", func(c *Config) { c.HTTP.Proxy = "proxy:8080" }, "absolute URL"},
		{"bad page policy", func(c *Config) { c.Fetch.PageFailure = "retry" }, "page_failure"},
		{"bad row policy", func(c *Config) { c.Fetch.RowFailure = "ignore" }, "row_failure"},
		{"negative delay", func(c *Config) { c.Fetch.PageDelay = -time.Second }, "page_delay"},
		{"bad backend", func(c *Config) { c.Monitor.Enabled = true; c.Monitor.Backend = "etcd" }, "backend"},
		{"redis without addr", func(c *Config) {
			c.Monitor.Enabled = true
			c.Monitor.Backend = "redis"
			c.Monitor.Redis.Addr = ""
		}, "redis.addr"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.errorMsg)
			}
		})
	}
}

func TestClient_EnvModeDropsProxyURL(t *testing.T) {
	cfg := Default()
	cfg.HTTP.ProxyMode = "env"
	cfg.HTTP.Proxy = "http://127.0.0.1:3128"

	cc := cfg.Client(nil)
	if cc.Proxy != "" {
		t.Errorf("Proxy = %q, want empty in env mode", cc.Proxy)
	}
	if _, err := client.New(cc); err != nil {
		t.Errorf("client.New() error = %v", err)
	}
}

func TestNewCounter(t *testing.T) {
	ctx := context.Background()

	cfg := Default()
	counter, closeFn, err := cfg.NewCounter(ctx)
	if err != nil || counter != nil {
		t.Errorf("disabled: counter = %v, err = %v", counter, err)
	}
	closeFn()

	cfg.Monitor.Enabled = true
	counter, closeFn, err = cfg.NewCounter(ctx)
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}
	defer closeFn()
	if _, ok := counter.(*monitor.MemoryCounter); !ok {
		t.Errorf("counter = %T, want *monitor.MemoryCounter", counter)
	}
}

func TestNewCounter_RedisUnavailable(t *testing.T) {
	cfg := Default()
	cfg.Monitor.Enabled = true
	cfg.Monitor.Backend = "redis"
	cfg.Monitor.Redis.Addr = "127.0.0.1:1"

	if _, _, err := cfg.NewCounter(context.Background()); err == nil {
		t.Error("expected connection error")
	}
}

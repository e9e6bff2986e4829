// Package config loads pagetable configuration from an optional YAML file and
// PAGETABLE_* environment variables.
package config

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/pagetable/pkg/client"
	"github.com/Sternrassler/pagetable/pkg/logging"
	"github.com/Sternrassler/pagetable/pkg/monitor"
	"github.com/Sternrassler/pagetable/pkg/table"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PAGETABLE_HTTP_TIMEOUT.
const EnvPrefix = "PAGETABLE"

// Config is the complete runtime configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// HTTPConfig configures the upstream client.
type HTTPConfig struct {
	UserAgent string            `mapstructure:"user_agent"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Proxy     string            `mapstructure:"proxy"`
	ProxyMode string            `mapstructure:"proxy_mode"` // transport, env
	Headers   map[string]string `mapstructure:"headers"`
}

// FetchConfig overrides dataset fetch policies. Empty values leave the dataset's choice.
type FetchConfig struct {
	PageFailure string        `mapstructure:"page_failure"` // fail_fast, skip
	RowFailure  string        `mapstructure:"row_failure"`  // fail_fast, skip
	PageDelay   time.Duration `mapstructure:"page_delay"`
}

// MonitorConfig configures request counting.
type MonitorConfig struct {
	Enabled   bool        `mapstructure:"enabled"`
	Backend   string      `mapstructure:"backend"` // memory, redis
	KeyPrefix string      `mapstructure:"key_prefix"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig configures the metrics endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.user_agent", client.DefaultUserAgent)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.proxy", "")
	v.SetDefault("http.proxy_mode", string(client.ProxyTransport))
	v.SetDefault("http.headers", map[string]string{})

	v.SetDefault("fetch.page_failure", "")
	v.SetDefault("fetch.row_failure", "")
	v.SetDefault("fetch.page_delay", time.Duration(0))

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.backend", "memory")
	v.SetDefault("monitor.key_prefix", monitor.DefaultKeyPrefix)
	v.SetDefault("monitor.redis.addr", "localhost:6379")
	v.SetDefault("monitor.redis.password", "")
	v.SetDefault("monitor.redis.db", 0)

	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("metrics.addr", "")
}

// Default returns the built-in defaults, ignoring the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// Load reads configPath (optional) and environment overrides, then validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0 (got %s)", c.HTTP.Timeout)
	}
	switch client.ProxyMode(c.HTTP.ProxyMode) {
	case client.ProxyTransport, client.ProxyEnv:
	default:
		return fmt.Errorf("http.proxy_mode must be transport or env (got %q)", c.HTTP.ProxyMode)
	}
	if c.HTTP.Proxy != "" {
		u, err := url.Parse(c.HTTP.Proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("http.proxy must be an absolute URL (got %q)", c.HTTP.Proxy)
		}
	}

	if c.Fetch.PageFailure != "" {
		if _, err := table.ParseFailurePolicy(c.Fetch.PageFailure); err != nil {
			return fmt.Errorf("fetch.page_failure: %w", err)
		}
	}
	if c.Fetch.RowFailure != "" {
		if _, err := table.ParseFailurePolicy(c.Fetch.RowFailure); err != nil {
			return fmt.Errorf("fetch.row_failure: %w", err)
		}
	}
	if c.Fetch.PageDelay < 0 {
		return fmt.Errorf("fetch.page_delay must be >= 0 (got %s)", c.Fetch.PageDelay)
	}

	if c.Monitor.Enabled {
		switch c.Monitor.Backend {
		case "memory":
		case "redis":
			if c.Monitor.Redis.Addr == "" {
				return fmt.Errorf("monitor.redis.addr is required for the redis backend")
			}
		default:
			return fmt.Errorf("monitor.backend must be memory or redis (got %q)", c.Monitor.Backend)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	return nil
}

// Logging converts the log section to a logging.Config.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.File = c.Log.File
	cfg.MaxSizeMB = c.Log.MaxSizeMB
	cfg.MaxBackups = c.Log.MaxBackups
	cfg.MaxAgeDays = c.Log.MaxAgeDays
	return cfg
}

// Client converts the http section to a client.Config. counter may be nil.
func (c *Config) Client(counter monitor.Counter) client.Config {
	cfg := client.DefaultConfig(c.HTTP.UserAgent)
	cfg.Timeout = c.HTTP.Timeout
	cfg.ProxyMode = client.ProxyMode(c.HTTP.ProxyMode)
	if cfg.ProxyMode == client.ProxyTransport {
		cfg.Proxy = c.HTTP.Proxy
	}
	cfg.Counter = counter

	if len(c.HTTP.Headers) > 0 {
		cfg.Headers = make(http.Header, len(c.HTTP.Headers))
		for k, v := range c.HTTP.Headers {
			cfg.Headers.Set(k, v)
		}
	}
	return cfg
}

// NewCounter builds the configured request counter. It returns nil when
// monitoring is disabled. The returned close function releases the Redis
// connection, if any.
func (c *Config) NewCounter(ctx context.Context) (monitor.Counter, func() error, error) {
	noop := func() error { return nil }
	if !c.Monitor.Enabled {
		return nil, noop, nil
	}

	if c.Monitor.Backend != "redis" {
		return monitor.NewMemoryCounter(), noop, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     c.Monitor.Redis.Addr,
		Password: c.Monitor.Redis.Password,
		DB:       c.Monitor.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, noop, fmt.Errorf("failed to connect to Redis at %s: %w", c.Monitor.Redis.Addr, err)
	}
	return monitor.NewRedisCounter(redisClient, c.Monitor.KeyPrefix), redisClient.Close, nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// proxyEnvKeys are the variables set by AcquireProxyEnv.
var proxyEnvKeys = []string{"HTTP_PROXY", "HTTPS_PROXY"}

var proxyMu sync.Mutex

type envValue struct {
	value string
	set   bool
}

// AcquireProxyEnv points HTTP_PROXY and HTTPS_PROXY at proxy and returns a
// release func restoring their previous values. An empty proxy changes nothing.
// Acquisitions are serialized: a second acquire blocks until the first is released.
func AcquireProxyEnv(proxy string) (release func(), err error) {
	if proxy == "" {
		return func() {}, nil
	}

	u, err := url.Parse(proxy)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q", proxy)
	}

	proxyMu.Lock()

	previous := make(map[string]envValue, len(proxyEnvKeys))
	for _, key := range proxyEnvKeys {
		v, ok := os.LookupEnv(key)
		previous[key] = envValue{value: v, set: ok}
		if err := os.Setenv(key, proxy); err != nil {
			restoreEnv(previous)
			proxyMu.Unlock()
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}

	log.Debug().Str("component", "config").Str("proxy_host", u.Host).Msg("Proxy environment acquired")

	var once sync.Once
	return func() {
		once.Do(func() {
			restoreEnv(previous)
			log.Debug().Str("component", "config").Msg("Proxy environment released")
			proxyMu.Unlock()
		})
	}, nil
}

func restoreEnv(previous map[string]envValue) {
	for key, prev := range previous {
		var err error
		if prev.set {
			err = os.Setenv(key, prev.value)
		} else {
			err = os.Unsetenv(key)
		}
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to restore proxy environment")
		}
	}
}

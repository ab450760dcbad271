package config

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvcrn/authclient/internal/apiclient"
	"github.com/dvcrn/authclient/internal/credentials"
	"github.com/dvcrn/authclient/internal/env"
	serverhttp "github.com/dvcrn/authclient/internal/http"
	"github.com/dvcrn/authclient/internal/logger"
	"github.com/dvcrn/authclient/internal/metrics"
)

// Storage kinds accepted in AUTHCLIENT_STORE.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds the client settings read from the environment.
type Config struct {
	BaseURL        string
	APIPrefix      string
	Timeout        time.Duration
	RefreshTimeout time.Duration
	Store          string
	CredsPath      string
	RedisURL       string
	Port           string
	AdminAPIKey    string
}

// Load reads the configuration. Invalid durations are logged and replaced
// by their defaults.
func Load() Config {
	return Config{
		BaseURL:        env.GetOrDefault("AUTHCLIENT_BASE_URL", apiclient.DefaultBaseURL),
		APIPrefix:      env.GetOrDefault("AUTHCLIENT_API_PREFIX", apiclient.DefaultAPIPrefix),
		Timeout:        duration("AUTHCLIENT_TIMEOUT", 30*time.Second),
		RefreshTimeout: duration("AUTHCLIENT_REFRESH_TIMEOUT", apiclient.DefaultRefreshTimeout),
		Store:          env.GetOrDefault("AUTHCLIENT_STORE", StoreFile),
		CredsPath:      env.GetOrDefault("AUTHCLIENT_CREDS_PATH", ""),
		RedisURL:       env.GetOrDefault("AUTHCLIENT_REDIS_URL", "redis://localhost:6379/0"),
		Port:           env.GetOrDefault("PORT", "9877"),
		AdminAPIKey:    env.GetOrDefault("ADMIN_API_KEY", ""),
	}
}

func duration(key string, def time.Duration) time.Duration {
	d, err := env.GetDuration(key, def)
	if err != nil {
		logger.Get().Warn().Err(err).Dur("default", def).Msg("Invalid duration, using default")
	}
	return d
}

// Backend builds the persistence backend selected by Store. The same
// backend serves as session and durable storage so a credential outlives
// a single CLI invocation.
func (c Config) Backend() (credentials.Backend, error) {
	switch c.Store {
	case StoreFile:
		return credentials.NewFileBackend(c.CredsPath)
	case StoreRedis:
		return credentials.NewRedisBackendFromURL(c.RedisURL)
	case StoreMemory:
		return credentials.NewMemoryBackend("memory"), nil
	default:
		return nil, fmt.Errorf("unknown AUTHCLIENT_STORE %q (want %s, %s or %s)", c.Store, StoreFile, StoreRedis, StoreMemory)
	}
}

// NewStore builds the credential store and restores any persisted
// credential. Restore failures are logged, not returned.
func (c Config) NewStore(ctx context.Context) (*credentials.Store, error) {
	backend, err := c.Backend()
	if err != nil {
		return nil, err
	}
	store := credentials.NewStore(backend, backend)
	if err := store.Restore(ctx); err != nil {
		logger.Get().Warn().Err(err).Str("backend", backend.Name()).Msg("Failed to restore credentials")
	}
	return store, nil
}

// NewClient builds an authenticated client for store. Metrics are
// registered with reg when it is non-nil.
func (c Config) NewClient(store *credentials.Store, reg prometheus.Registerer) *apiclient.Client {
	return apiclient.New(store,
		apiclient.WithBaseURL(c.BaseURL),
		apiclient.WithAPIPrefix(c.APIPrefix),
		apiclient.WithHTTPClient(serverhttp.NewHTTPClient(c.Timeout)),
		apiclient.WithRefreshTimeout(c.RefreshTimeout),
		apiclient.WithMetrics(metrics.New(reg)),
	)
}

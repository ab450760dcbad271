package cli

import "github.com/dvcrn/authclient/internal/config"

// Options are the global flags. Empty values keep what the environment
// configured.
type Options struct {
	BaseURL   string `short:"b" long:"base-url" description:"API base URL (default $AUTHCLIENT_BASE_URL)"`
	APIPrefix string `long:"api-prefix" description:"API path prefix (default $AUTHCLIENT_API_PREFIX)"`
	Store     string `short:"s" long:"store" choice:"file" choice:"redis" choice:"memory" description:"credential storage (default $AUTHCLIENT_STORE)"`
	CredsPath string `long:"creds" description:"credentials file for the file store (default $AUTHCLIENT_CREDS_PATH)"`
	RedisURL  string `long:"redis-url" description:"redis URL for the redis store (default $AUTHCLIENT_REDIS_URL)"`
}

func (o *Options) apply(cfg config.Config) config.Config {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.APIPrefix != "" {
		cfg.APIPrefix = o.APIPrefix
	}
	if o.Store != "" {
		cfg.Store = o.Store
	}
	if o.CredsPath != "" {
		cfg.CredsPath = o.CredsPath
	}
	if o.RedisURL != "" {
		cfg.RedisURL = o.RedisURL
	}
	return cfg
}

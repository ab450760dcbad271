package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "authclient:"

// RedisBackend stores credential fields in Redis, for clients that share a
// session across processes.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithKeyPrefix namespaces every key. The default is "authclient:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisBackend) {
		r.prefix = prefix
	}
}

// WithTTL expires stored values after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisBackend) {
		r.ttl = ttl
	}
}

// NewRedisBackend constructs a Redis-backed Backend.
func NewRedisBackend(client *redis.Client, opts ...RedisOption) *RedisBackend {
	r := &RedisBackend{
		client: client,
		prefix: defaultRedisKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// NewRedisBackendFromURL parses a redis:// URL and connects lazily.
func NewRedisBackendFromURL(rawURL string, opts ...RedisOption) (*RedisBackend, error) {
	o, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisBackend(redis.NewClient(o), opts...), nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string, _ Attributes) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

func (r *RedisBackend) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisBackend) Name() string {
	return "RedisBackend(" + r.client.Options().Addr + ")"
}

package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Scope backed by a Redis database, used as the durable
// per-visitor scope. Keys are namespaced with a prefix so many visitors can
// share one database.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisConfig provides environment-based configuration for the Redis scope.
type RedisConfig struct {
	URL    string        `env:"AUTHKIT_REDIS_URL,required"`
	Prefix string        `env:"AUTHKIT_REDIS_PREFIX" envDefault:"authkit:"`
	TTL    time.Duration `env:"AUTHKIT_REDIS_TTL" envDefault:"720h"`
}

// RedisOption configures the Redis scope.
type RedisOption func(*Redis)

// WithPrefix sets the key namespace prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithTTL sets the expiration applied on every write. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// NewRedis creates a Redis-backed scope on an existing client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedisFromConfig connects to Redis using cfg and verifies the connection.
func NewRedisFromConfig(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("kv: parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kv: redis ping: %w", err)
	}

	return NewRedis(client, WithPrefix(cfg.Prefix), WithTTL(cfg.TTL)), nil
}

// Get returns the stored value for key, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Set stores value under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Delete removes key; absent keys are ignored.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

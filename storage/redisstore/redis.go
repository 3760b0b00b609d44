// Package redisstore keeps session values in Redis so several console
// replicas can share one operator session.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-admin-console/storage"
)

var _ storage.Store = (*Store)(nil)

// Config for the Redis store. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: REDIS_KEY_PREFIX
	KeyPrefix string `env:"REDIS_KEY_PREFIX,default=console:session:"`
	// DB selects the logical database. ENV: REDIS_DB
	DB int `env:"REDIS_DB,default=0"`
}

type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	return New(ctx, cfg)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "console:session:"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) key(k string) string { return s.keyPrefix + k }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// SetMany writes all values inside one MULTI/EXEC transaction.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range values {
			p.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set %d keys: %w", len(values), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

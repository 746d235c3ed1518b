// Package redis implements storage.Store on Redis, for deployments where
// several server processes share one store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/foodsaver/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store wraps a Redis client. Every key is namespaced under prefix.
type Store struct {
	client *goredis.Client
	prefix string
}

// New connects to the Redis server at addr ("host:port" or a redis:// URL)
// and verifies the connection.
func New(ctx context.Context, addr, prefix string) (*Store, error) {
	opt, err := goredis.ParseURL(addr)
	if err != nil {
		opt, err = goredis.ParseURL("redis://" + addr)
		if err != nil {
			return nil, fmt.Errorf("redis: parsing address %q: %w", addr, err)
		}
	}

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connecting to %s: %w", addr, err)
	}

	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get returns the value under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: getting %q: %w", key, err)
	}
	return data, true, nil
}

// Set stores value under key with no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: setting %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: deleting %q: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

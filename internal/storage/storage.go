// Package storage is the durable key-value layer everything else persists to.
//
// A Store holds opaque JSON documents under string keys, the server-side
// counterpart of the browser's localStorage. Backends live in subpackages
// (sqlite, redis). No backend offers multi-key transactions; callers that
// need read-modify-write serialize it themselves.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a durable key-value store.
type Store interface {
	// Get returns the value under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set creates or replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes the document under key into dest.
// It returns false, leaving dest untouched, when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dest any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("storage: decoding %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encoding %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

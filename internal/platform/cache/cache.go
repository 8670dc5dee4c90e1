// Package cache holds short-lived read-through copies of query results.
// Entries are opaque bytes; callers own the encoding.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is a TTL key/value store. A miss is reported as (nil, false, nil);
// an error means the backend itself failed and callers should fall back to
// the source of truth.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LoadJSON decodes the entry under key into dst.
func LoadJSON(ctx context.Context, s Store, key string, dst interface{}) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key for ttl.
func SaveJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

// NopStore never holds anything.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, bool, error)       { return nil, false, nil }
func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopStore) Delete(context.Context, ...string) error                  { return nil }

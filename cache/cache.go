package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Cache is a string key/value store with per-key expiry.
type Cache interface {
	// Set stores value under key for ttl. An existing value is overwritten.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Take atomically reads and removes key. A value returned by Take is never
	// observed by another Get or Take.
	Take(ctx context.Context, key string) (string, error)
}

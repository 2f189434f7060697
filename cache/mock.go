package cache

import (
	"context"
	"time"
)

// MockCache provides customizable hooks for testing Cache consumers.
type MockCache struct {
	SetFunc    func(ctx context.Context, key, value string, ttl time.Duration) error
	GetFunc    func(ctx context.Context, key string) (string, error)
	DeleteFunc func(ctx context.Context, key string) error
	TakeFunc   func(ctx context.Context, key string) (string, error)
}

// Ensure MockCache implements Cache
var _ Cache = (*MockCache)(nil)

// Set calls SetFunc if set, otherwise returns nil
func (m *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	return nil
}

// Get calls GetFunc if set, otherwise returns ErrNotFound
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", ErrNotFound
}

// Delete calls DeleteFunc if set, otherwise returns nil
func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// Take calls TakeFunc if set, otherwise returns ErrNotFound
func (m *MockCache) Take(ctx context.Context, key string) (string, error) {
	if m.TakeFunc != nil {
		return m.TakeFunc(ctx, key)
	}
	return "", ErrNotFound
}

package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface. Values are stored as JSON.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// GetOrLoad returns the cached value under key, or calls load and stores its
// result. Cache failures other than a miss are returned alongside the loaded
// value so callers can log them without failing.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var out T
	if c != nil {
		if err := c.Get(ctx, key, &out); err == nil {
			return out, true, nil
		}
	}

	out, err := load(ctx)
	if err != nil {
		return out, false, err
	}
	if c != nil {
		if err := c.Set(ctx, key, out, ttl); err != nil {
			return out, false, &StoreError{Key: key, Err: err}
		}
	}
	return out, false, nil
}

// StoreError is returned by GetOrLoad when the loaded value could not be cached.
type StoreError struct {
	Key string
	Err error
}

func (e *StoreError) Error() string { return "cache: store " + e.Key + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

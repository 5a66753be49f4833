package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// CacheService stores JSON-serialisable values with a TTL
type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	// SetIfAbsent stores value only when key holds nothing and reports
	// whether it was stored.
	SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

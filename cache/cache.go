// Package cache provides the ephemeral key/value cache used for two-factor
// enrollment attempts, single-use code markers and the blacklist mirror.
//
// Entries may disappear at any time; callers treat every miss as normal and
// fall back to durable storage where one exists.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by Get when the key is absent or expired.
	ErrMiss = errors.New("cache: miss")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("cache: backend unavailable")
)

// Cache is a byte-valued TTL cache. A zero ttl means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Add stores value only if key is absent and reports whether it did.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Incr adds one to the decimal counter at key and returns the new value.
	// ttl applies only when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

var (
	// ErrRateLimited is returned once a key exhausts its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Limiter admits or rejects one hit for key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Config is a budget of Limit hits per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig is five hits per minute.
func DefaultConfig() Config {
	return Config{Limit: 5, Window: time.Minute}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// Redis is a fixed-window limiter shared by every process using the same Redis.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// NewRedis binds a fixed-window limiter to client. Keys are "<prefix>:<key>".
func NewRedis(client redis.UniversalClient, prefix string, cfg Config) *Redis {
	if prefix == "" {
		prefix = "sar"
	}
	return &Redis{redis: client, prefix: prefix, config: cfg.normalized()}
}

// Allow counts one hit and fails with ErrRateLimited past the budget.
func (l *Redis) Allow(ctx context.Context, key string) error {
	count, err := l.incrementWithTTL(ctx, l.prefix+":"+key, l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.Limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Redis) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Local keeps one token bucket per key in memory. The bucket holds Limit
// tokens and refills one every Window/Limit. A bucket idle for a full Window
// is full again, so it is dropped on the next sweep.
type Local struct {
	mu        sync.Mutex
	config    Config
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter *xrate.Limiter
	seen    time.Time
}

// NewLocal returns an in-process limiter.
func NewLocal(cfg Config) *Local {
	return &Local{
		config:  cfg.normalized(),
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// Allow takes a token for key.
func (l *Local) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.config.Window {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		every := l.config.Window / time.Duration(l.config.Limit)
		b = &localBucket{limiter: xrate.NewLimiter(xrate.Every(every), l.config.Limit)}
		l.buckets[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	if !b.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// sweep drops idle buckets. Callers hold mu.
func (l *Local) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= l.config.Window {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

// Len reports how many buckets are held.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

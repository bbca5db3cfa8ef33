package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/saasAuth/cache"
)

const (
	defaultMaxFailures     = 5
	defaultFailureCooldown = time.Minute
)

// FailureConfig holds the lockout thresholds for Failures.
type FailureConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// Failures counts consecutive failed attempts per subject in the cache. Once a
// subject reaches MaxAttempts, Check rejects it until Cooldown has passed
// since its first failure.
type Failures struct {
	cache       cache.Cache
	prefix      string
	maxAttempts int64
	cooldown    time.Duration
}

// NewFailures binds a failure counter to c. Zero-value fields in cfg fall back
// to 5 attempts per minute.
func NewFailures(c cache.Cache, prefix string, cfg FailureConfig) *Failures {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultMaxFailures
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultFailureCooldown
	}
	return &Failures{cache: c, prefix: prefix, maxAttempts: int64(max), cooldown: cd}
}

func (f *Failures) key(subject string) string {
	return f.prefix + ":att:" + subject
}

// Check fails with ErrRateLimited while subject is locked out.
func (f *Failures) Check(ctx context.Context, subject string) error {
	data, err := f.cache.Get(ctx, f.key(subject))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil
		}
		return fmt.Errorf("rate: read failures: %w", err)
	}
	count, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("rate: decode failures: %w", err)
	}
	if count >= f.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts one failure and returns ErrRateLimited when it used up
// the last attempt.
func (f *Failures) RecordFailure(ctx context.Context, subject string) error {
	count, err := f.cache.Incr(ctx, f.key(subject), f.cooldown)
	if err != nil {
		return fmt.Errorf("rate: record failure: %w", err)
	}
	if count >= f.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Reset clears subject after a success.
func (f *Failures) Reset(ctx context.Context, subject string) error {
	if err := f.cache.Delete(ctx, f.key(subject)); err != nil {
		return fmt.Errorf("rate: reset failures: %w", err)
	}
	return nil
}

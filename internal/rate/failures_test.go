package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/saasAuth/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFailuresLockoutAndReset(t *testing.T) {
	f := NewFailures(cache.NewMemory(), "ns", FailureConfig{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	if err := f.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected clean subject to pass, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.RecordFailure(ctx, "u1"); err != nil {
			t.Fatalf("failure %d: unexpected error %v", i, err)
		}
	}
	if err := f.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected one attempt left, got %v", err)
	}
	if err := f.RecordFailure(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected last failure to lock, got %v", err)
	}
	if err := f.Check(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected locked subject, got %v", err)
	}
	if err := f.Check(ctx, "u2"); err != nil {
		t.Fatalf("other subject should be independent, got %v", err)
	}

	if err := f.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := f.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected reset subject to pass, got %v", err)
	}
}

func TestFailuresCooldownOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := NewFailures(cache.NewRedis(rdb, ""), "ns", FailureConfig{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := f.RecordFailure(ctx, "u1"); err != nil {
			t.Fatalf("failure %d: unexpected error %v", i, err)
		}
	}
	if err := f.RecordFailure(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected fifth failure to lock, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := f.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected lock to lapse after cooldown, got %v", err)
	}
}

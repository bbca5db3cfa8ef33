package saasAuth

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/saasAuth/internal/usage"
)

func TestTrackUsage(t *testing.T) {
	cfg := testConfig()
	cfg.Usage.FlushEvery = 2
	env := newTestEngine(t, cfg)
	ctx := context.Background()
	env.register(t, "a@example.com", "password123")
	u := env.stored(t, "a@example.com")

	env.engine.TrackUsage(ctx, "/user", u)
	env.engine.TrackUsage(ctx, "/login", nil)
	env.engine.TrackUsage(ctx, "/", nil)
	env.engine.background.Wait()

	day := env.clock.Now().Format(usage.DayLayout)
	snap, err := env.engine.UsageSnapshot(ctx)
	if err != nil {
		t.Fatalf("UsageSnapshot failed: %v", err)
	}
	if snap.Usage[day] != 2 {
		t.Fatalf("expected 2 counted requests, got %d", snap.Usage[day])
	}
	if snap.Endpoints[day]["/user"] != 1 || snap.Endpoints[day]["/login"] != 1 {
		t.Fatalf("unexpected endpoint counts: %v", snap.Endpoints[day])
	}
	if _, ok := snap.Endpoints[day]["/"]; ok {
		t.Fatal("expected / to be ignored")
	}

	if _, err := env.db.Get(ctx, "app/usage"); err != nil {
		t.Fatalf("expected totals flushed after two requests, got %v", err)
	}

	stored := env.stored(t, "a@example.com")
	if stored.Usage == nil || stored.Usage.Endpoints[day]["/user"] != 1 {
		t.Fatalf("expected per-user counters, got %+v", stored.Usage)
	}
}

func TestTrackUsageDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Usage.Enabled = false
	env := newTestEngine(t, cfg)

	env.engine.TrackUsage(context.Background(), "/login", nil)
	snap, err := env.engine.UsageSnapshot(context.Background())
	if err != nil || len(snap.Usage) != 0 {
		t.Fatalf("expected no usage, snap=%+v err=%v", snap, err)
	}
}

func TestTrackUsageRacingClose(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				env.engine.TrackUsage(ctx, "/user", nil)
			}
		}()
	}
	env.engine.Close()
	wg.Wait()

	day := env.clock.Now().Format(usage.DayLayout)
	before, err := env.engine.UsageSnapshot(ctx)
	if err != nil {
		t.Fatalf("UsageSnapshot failed: %v", err)
	}
	env.engine.TrackUsage(ctx, "/user", nil)
	env.engine.background.Wait()
	after, err := env.engine.UsageSnapshot(ctx)
	if err != nil {
		t.Fatalf("UsageSnapshot failed: %v", err)
	}
	if after.Usage[day] != before.Usage[day] {
		t.Fatalf("expected tracking after Close to be dropped, %d -> %d", before.Usage[day], after.Usage[day])
	}
	env.engine.Close()
}

package saasAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/saasAuth/store"
)

// TrackUsage counts a request against the tenant totals and, when user is
// set, the user's own counters. The writes run in the background; Close
// waits for them and later calls are ignored.
func (e *Engine) TrackUsage(ctx context.Context, path string, user *User) {
	if e.usage == nil || e.usage.Ignored(path) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var userID string
	if user != nil {
		userID = user.ID
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.background.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.background.Done()
		if err := e.usage.Track(ctx, path); err != nil {
			e.logger.WarnContext(ctx, "usage tracking failed", "path", path, "error", err)
		}
		if userID == "" {
			return
		}
		if err := e.trackUserUsage(ctx, userID, path); err != nil {
			e.logger.WarnContext(ctx, "user usage tracking failed", "user_id", userID, "path", path, "error", err)
		}
	}()
}

// trackUserUsage is a read-modify-write on the user record; concurrent
// requests by one user may lose increments.
func (e *Engine) trackUserUsage(ctx context.Context, userID, path string) error {
	u, err := e.findUser(ctx, store.Filter{"id": userID})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	counters := u.Usage
	if counters == nil {
		counters = &UsageCounters{}
	}
	counters.Increment(e.usage.Day(), path)
	return e.users.Update(ctx, userID, store.Document{"usage": counters})
}

// UsageSnapshot returns the tenant totals including unflushed counts.
func (e *Engine) UsageSnapshot(ctx context.Context) (UsageCounters, error) {
	if e.usage == nil {
		return UsageCounters{}, nil
	}
	u, err := e.usage.Snapshot(ctx)
	if err != nil {
		return UsageCounters{}, e.internal(ctx, "usage_snapshot", err)
	}
	return u, nil
}

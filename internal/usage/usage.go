// Package usage keeps per-day request counters for a tenant and for each
// user. Tenant totals are buffered in memory and flushed to the database
// every N tracked requests.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/saasAuth/store"
)

// DayLayout formats the per-day bucket key, e.g. "March 4, 2026".
const DayLayout = "January 2, 2006"

// DefaultIgnore lists paths that are never counted.
var DefaultIgnore = []string{"/", "admin/assets"}

// Usage is the stored counter shape: total requests per day and per-path
// counts per day.
type Usage struct {
	Usage     map[string]int            `json:"usage,omitempty"`
	Endpoints map[string]map[string]int `json:"endpoints,omitempty"`
}

// Increment counts one request for path on day.
func (u *Usage) Increment(day, path string) {
	if u.Usage == nil {
		u.Usage = make(map[string]int)
	}
	if u.Endpoints == nil {
		u.Endpoints = make(map[string]map[string]int)
	}
	u.Usage[day]++
	if u.Endpoints[day] == nil {
		u.Endpoints[day] = make(map[string]int)
	}
	u.Endpoints[day][path]++
}

func (u Usage) clone() Usage {
	out := Usage{
		Usage:     make(map[string]int, len(u.Usage)),
		Endpoints: make(map[string]map[string]int, len(u.Endpoints)),
	}
	for k, v := range u.Usage {
		out.Usage[k] = v
	}
	for day, paths := range u.Endpoints {
		m := make(map[string]int, len(paths))
		for p, v := range paths {
			m[p] = v
		}
		out.Endpoints[day] = m
	}
	return out
}

// Config tunes a Tracker.
type Config struct {
	Namespace  string
	FlushEvery int
	Ignore     []string
}

// Tracker aggregates tenant-wide counters. Safe for concurrent use.
type Tracker struct {
	db         store.Database
	key        string
	flushEvery int
	ignore     map[string]struct{}
	now        func() time.Time

	mu      sync.Mutex
	loaded  bool
	current Usage
	pending int
}

func NewTracker(db store.Database, cfg Config, now func() time.Time) *Tracker {
	flush := cfg.FlushEvery
	if flush <= 0 {
		flush = 10
	}
	ignore := cfg.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	set := make(map[string]struct{}, len(ignore))
	for _, p := range ignore {
		set[p] = struct{}{}
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		db:         db,
		key:        cfg.Namespace + "/usage",
		flushEvery: flush,
		ignore:     set,
		now:        now,
	}
}

// Ignored reports whether path is excluded from counting.
func (t *Tracker) Ignored(path string) bool {
	_, ok := t.ignore[path]
	return ok
}

// Day returns the bucket key for the current time.
func (t *Tracker) Day() string {
	return t.now().Format(DayLayout)
}

// Track counts one request for path. Every FlushEvery tracked requests the
// totals are written to the database; the write error, if any, is returned
// and the counters stay buffered.
func (t *Tracker) Track(ctx context.Context, path string) error {
	if t.Ignored(path) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.loadLocked(ctx); err != nil {
		return err
	}
	t.current.Increment(t.Day(), path)
	t.pending++
	if t.pending < t.flushEvery {
		return nil
	}
	return t.flushLocked(ctx)
}

// Flush writes buffered totals now.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded || t.pending == 0 {
		return nil
	}
	return t.flushLocked(ctx)
}

// Snapshot returns a copy of the in-memory totals.
func (t *Tracker) Snapshot(ctx context.Context) (Usage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.loadLocked(ctx); err != nil {
		return Usage{}, err
	}
	return t.current.clone(), nil
}

func (t *Tracker) loadLocked(ctx context.Context) error {
	if t.loaded {
		return nil
	}
	data, err := t.db.Get(ctx, t.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(data, &t.current); err != nil {
			return fmt.Errorf("decode usage: %w", err)
		}
	}
	t.loaded = true
	return nil
}

func (t *Tracker) flushLocked(ctx context.Context) error {
	data, err := json.Marshal(t.current)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}
	if err := t.db.Set(ctx, t.key, data); err != nil {
		return err
	}
	t.pending = 0
	return nil
}

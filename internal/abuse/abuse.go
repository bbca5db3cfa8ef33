// Package abuse implements the IP blacklist heuristic: anonymous requests for
// paths that only vulnerability scanners ask for get their IP banned.
//
// The list is one JSON array stored under the tenant's blacklist key, with a
// cache mirror in front of it. The mirror may be stale or missing; the
// database copy is authoritative.
package abuse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/saasAuth/cache"
	"github.com/MrEthical07/saasAuth/store"
	"golang.org/x/sync/singleflight"
)

// DefaultKeywords are path fragments requested by common scanners.
var DefaultKeywords = []string{
	".php",
	".cgi",
	".jsp",
	".env",
	".HNAP1",
	"joomla",
	"phpstorm",
	"mysql",
	"formLogin",
	"phpunit",
	"muieblackcat",
	"wp-includes",
	"wp-content",
	"jsonws",
	"phpmyadmin",
	"phpadmin",
}

const defaultMirrorTTL = 5 * time.Minute

// Entry is one banned request.
type Entry struct {
	IP        string    `json:"ip"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Config tunes a Heuristic. Nil Keywords selects DefaultKeywords; an empty
// non-nil slice disables path matching.
type Config struct {
	Namespace string
	Keywords  []string
	MirrorTTL time.Duration
}

// Heuristic is safe for concurrent use.
type Heuristic struct {
	db        store.Database
	cache     cache.Cache
	dbKey     string
	cacheKey  string
	keywords  []string
	mirrorTTL time.Duration
	now       func() time.Time

	// mu serializes read-modify-write of the stored list within this process.
	mu    sync.Mutex
	group singleflight.Group
}

func New(db store.Database, c cache.Cache, cfg Config, now func() time.Time) *Heuristic {
	keywords := cfg.Keywords
	if keywords == nil {
		keywords = DefaultKeywords
	}
	ttl := cfg.MirrorTTL
	if ttl <= 0 {
		ttl = defaultMirrorTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Heuristic{
		db:        db,
		cache:     c,
		dbKey:     cfg.Namespace + "/blacklist",
		cacheKey:  cfg.Namespace + ":blacklist",
		keywords:  append([]string(nil), keywords...),
		mirrorTTL: ttl,
		now:       now,
	}
}

// IsOffendingPath reports whether path contains any keyword. Matching is
// case-sensitive.
func (h *Heuristic) IsOffendingPath(path string) bool {
	for _, k := range h.keywords {
		if k != "" && strings.Contains(path, k) {
			return true
		}
	}
	return false
}

// IsBlacklisted reports whether ip has been banned.
func (h *Heuristic) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}
	entries, err := h.List(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IP == ip {
			return true, nil
		}
	}
	return false, nil
}

// Record appends a ban for ip and refreshes the mirror.
func (h *Heuristic) Record(ctx context.Context, ip, path string) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.load(ctx)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{IP: ip, Path: path, Timestamp: h.now()}
	entries = append(entries, entry)

	data, err := json.Marshal(entries)
	if err != nil {
		return Entry{}, fmt.Errorf("encode blacklist: %w", err)
	}
	if err := h.db.Set(ctx, h.dbKey, data); err != nil {
		return Entry{}, err
	}
	// A failed mirror write only delays visibility until the next miss.
	_ = h.cache.Set(ctx, h.cacheKey, data, h.mirrorTTL)
	return entry, nil
}

// List returns the current blacklist, reading through the mirror. Concurrent
// misses share one database read.
func (h *Heuristic) List(ctx context.Context) ([]Entry, error) {
	if data, err := h.cache.Get(ctx, h.cacheKey); err == nil {
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err == nil {
			return entries, nil
		}
	}

	v, err, _ := h.group.Do(h.cacheKey, func() (any, error) {
		entries, err := h.load(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(entries); err == nil {
			_ = h.cache.Set(ctx, h.cacheKey, data, h.mirrorTTL)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

func (h *Heuristic) load(ctx context.Context) ([]Entry, error) {
	data, err := h.db.Get(ctx, h.dbKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode blacklist: %w", err)
	}
	return entries, nil
}

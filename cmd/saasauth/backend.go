package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/saasAuth/cache"
	"github.com/MrEthical07/saasAuth/internal/rate"
	"github.com/MrEthical07/saasAuth/store"
	"github.com/MrEthical07/saasAuth/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errUnknownBackend = errors.New("unknown storage backend")

// backend bundles what a storage choice provides to the engine and router.
type backend struct {
	db      store.Database
	cache   cache.Cache
	limiter rate.Limiter
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openBackend connects the configured storage. Redis backends share one
// client between documents, cache and rate limiting; postgres keeps the
// cache and limiter in process.
func openBackend(ctx context.Context, cfg fileConfig, logger *slog.Logger) (*backend, error) {
	s := cfg.Storage
	b := &backend{}

	switch s.Backend {
	case "memory":
		b.db = store.NewMemory()
		b.cache = cache.NewMemory()
		b.limiter = rate.NewLocal(cfg.rateConfig())

	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		b.closers = append(b.closers, func() error { mr.Close(); return nil })
		logger.Info("using miniredis", "addr", mr.Addr())
		b.useRedis(redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}), cfg)

	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", s.RedisAddr, err)
		}
		b.useRedis(client, cfg)

	case "postgres":
		db, conn, err := postgres.Open(ctx, s.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, conn.Close)
		b.db = db
		b.cache = cache.NewMemory()
		b.limiter = rate.NewLocal(cfg.rateConfig())

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, s.Backend)
	}
	return b, nil
}

func (b *backend) useRedis(client redis.UniversalClient, cfg fileConfig) {
	prefix := cfg.Storage.KeyPrefix
	b.closers = append(b.closers, client.Close)
	b.db = store.NewRedis(client, prefix)
	b.cache = cache.NewRedis(client, prefix)
	b.limiter = rate.NewRedis(client, prefix+":rate", cfg.rateConfig())
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	saasAuth "github.com/MrEthical07/saasAuth"
	"github.com/MrEthical07/saasAuth/httpapi"
	"github.com/MrEthical07/saasAuth/metrics/export/prometheus"
	"github.com/MrEthical07/saasAuth/store/postgres"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	backend    string
	listen     string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "saasauth",
		Short:         "Multi-tenant session and credential service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "override storage backend (memory, redis, miniredis, postgres)")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newBlacklistCommand(opts),
		newUsageCommand(opts),
		newLoadtestCommand(),
	)
	return cmd
}

// load reads the config file and applies flag overrides.
func (o *options) load() (fileConfig, *slog.Logger, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return fileConfig{}, nil, err
	}
	if o.backend != "" {
		cfg.Storage.Backend = o.backend
	}
	if o.listen != "" {
		cfg.Listen = o.listen
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fileConfig{}, nil, err
	}
	return cfg, logger, nil
}

// openEngine connects storage and builds the engine. The returned func
// closes both in order.
func openEngine(ctx context.Context, cfg fileConfig, logger *slog.Logger) (*saasAuth.Engine, *backend, func(), error) {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	builder := saasAuth.New().
		WithConfig(cfg.engineConfig()).
		WithDatabase(b.db).
		WithCache(b.cache).
		WithLogger(logger)
	if m := cfg.mailer(); m != nil {
		builder.WithMailer(m)
	}
	if cfg.Auth.Audit {
		builder.WithAuditSink(saasAuth.NewSlogSink(logger.With("component", "audit")))
	}

	engine, err := builder.Build()
	if err != nil {
		_ = b.Close()
		return nil, nil, nil, fmt.Errorf("build engine: %w", err)
	}
	closeAll := func() {
		engine.Close()
		if err := b.Close(); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}
	return engine, b, closeAll, nil
}

func newServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the auth routes over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, b, closeAll, err := openEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeAll()

			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           newServeMux(engine, b, cfg, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(ctx, srv, logger)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "override listen address")
	return cmd
}

// newServeMux mounts the metrics endpoint beside the auth router.
func newServeMux(engine *saasAuth.Engine, b *backend, cfg fileConfig, logger *slog.Logger) http.Handler {
	router := httpapi.NewRouter(engine, httpapi.Options{Limiter: b.limiter, Logger: logger})
	if !cfg.Auth.Metrics || cfg.MetricsPath == "" {
		return router
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+cfg.MetricsPath, prometheus.New(engine).Handler())
	mux.Handle("/", router)
	return mux
}

func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			_, conn, err := postgres.Open(cmd.Context(), cfg.Storage.PostgresDSN)
			if err != nil {
				return err
			}
			defer conn.Close()
			logger.Info("schema up to date")
			return nil
		},
	}
}

func newBlacklistCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "blacklist",
		Short: "Print the banned IPs as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *saasAuth.Engine) (any, error) {
				return e.Blacklist(ctx)
			})
		},
	}
}

func newUsageCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Print the tenant request counters as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *saasAuth.Engine) (any, error) {
				return e.UsageSnapshot(ctx)
			})
		},
	}
}

func withEngine(cmd *cobra.Command, opts *options, fn func(context.Context, *saasAuth.Engine) (any, error)) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	engine, _, closeAll, err := openEngine(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	out, err := fn(cmd.Context(), engine)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	saasAuth "github.com/MrEthical07/saasAuth"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saasauth.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, "memory", cfg.Storage.Backend)
	ec := cfg.engineConfig()
	require.NoError(t, ec.Validate())
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
listen = ":9090"
log_level = "debug"

[storage]
backend = "miniredis"

[auth]
namespace = "acme"
lockout = "2h"
private = true
bind_ip = true
bcrypt_cost = 4
abuse_keywords = [".php"]
two_factor_max_attempts = 3

[business]
name = "Acme"
email = "noreply@acme.test"
host = "https://acme.test"

[rate_limit]
limit = 3
window = "30s"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "miniredis", cfg.Storage.Backend)
	require.Equal(t, "sa", cfg.Storage.KeyPrefix)
	require.Equal(t, 3, cfg.RateLimit.Limit)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	ec := cfg.engineConfig()
	require.NoError(t, ec.Validate())
	require.Equal(t, "acme", ec.Namespace)
	require.Equal(t, 2*time.Hour, ec.Lockout)
	require.False(t, ec.RegistrationOpen())
	require.True(t, ec.Session.BindIP)
	require.Equal(t, 3, ec.TwoFactor.MaxAttempts)
	require.Equal(t, time.Minute, ec.TwoFactor.Cooldown)
	require.Equal(t, []string{".php"}, ec.Abuse.Keywords)
	require.Equal(t, "Acme", ec.Business.Name)
	require.True(t, ec.Usage.Enabled)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "listen = \":1\"\nlisten_port = 1\n")

	_, err := loadConfig(path)
	require.ErrorContains(t, err, "listen_port")
}

func TestMailerOnlyWithRelay(t *testing.T) {
	cfg := defaultFileConfig()
	require.Nil(t, cfg.mailer())

	cfg.SMTP.Host = "smtp.acme.test"
	require.NotNil(t, cfg.mailer())
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger("loud")
	require.ErrorIs(t, err, errUnknownLogLevel)

	logger, err := newLogger("warn")
	require.NoError(t, err)
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"memory", "miniredis"} {
		t.Run(name, func(t *testing.T) {
			cfg := defaultFileConfig()
			cfg.Storage.Backend = name
			b, err := openBackend(ctx, cfg, discardLogger())
			require.NoError(t, err)
			defer func() { require.NoError(t, b.Close()) }()

			require.NoError(t, b.db.Set(ctx, "probe", []byte(`{"ok":true}`)))
			require.NoError(t, b.limiter.Allow(ctx, "probe"))
		})
	}

	cfg := defaultFileConfig()
	cfg.Storage.Backend = "cassandra"
	_, err := openBackend(ctx, cfg, discardLogger())
	require.ErrorIs(t, err, errUnknownBackend)
}

func TestServeMuxRoutesAndMetrics(t *testing.T) {
	cfg := defaultFileConfig()
	cfg.Auth.BcryptCost = 4
	engine, b, closeAll, err := openEngine(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer closeAll()

	h := newServeMux(engine, b, cfg, discardLogger())

	body := strings.NewReader(`{"username":"cli@example.com","password":"pw123456"}`)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reg saasAuth.SessionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.Session)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "saasauth_register_success_total 1")
}

func TestUsageCommandPrintsJSON(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"usage", "--backend", "memory"})

	require.NoError(t, cmd.Execute())
	require.True(t, json.Valid(out.Bytes()), out.String())
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCommand().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "blacklist", "usage", "loadtest"} {
		require.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestLoadtestSmallRun(t *testing.T) {
	var out bytes.Buffer
	err := runLoadtest(context.Background(), &out, loadtestOptions{
		sessions:    20,
		concurrency: 4,
		ops:         100,
		prefix:      "lt",
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "lookup: ops=100 failures=0")
	require.Contains(t, out.String(), "refresh: ops=100 failures=0")

	require.Error(t, runLoadtest(context.Background(), &out, loadtestOptions{}))
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, time.Duration(1), percentile(samples, 0))
	require.Equal(t, time.Duration(5), percentile(samples, 50))
	require.Equal(t, time.Duration(10), percentile(samples, 100))
	require.Equal(t, time.Duration(0), percentile(nil, 50))

	stats := computeStats(time.Second, []time.Duration{3, 1, 2}, 1)
	require.Equal(t, 3, stats.ops)
	require.Equal(t, int64(1), stats.failures)
	require.Equal(t, time.Duration(2), stats.p50)
}

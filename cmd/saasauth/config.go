package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	saasAuth "github.com/MrEthical07/saasAuth"
	"github.com/MrEthical07/saasAuth/internal/rate"
	"github.com/MrEthical07/saasAuth/mail"
)

// fileConfig is the TOML layout. Keys missing from the file keep the values
// of defaultFileConfig.
type fileConfig struct {
	Listen      string `toml:"listen"`
	MetricsPath string `toml:"metrics_path"`
	LogLevel    string `toml:"log_level"`

	Storage   storageSection   `toml:"storage"`
	Auth      authSection      `toml:"auth"`
	Business  businessSection  `toml:"business"`
	SMTP      smtpSection      `toml:"smtp"`
	RateLimit rateLimitSection `toml:"rate_limit"`
}

type storageSection struct {
	// Backend is one of memory, redis, miniredis or postgres.
	Backend     string `toml:"backend"`
	RedisAddr   string `toml:"redis_addr"`
	KeyPrefix   string `toml:"key_prefix"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type authSection struct {
	Namespace     string        `toml:"namespace"`
	Lockout       time.Duration `toml:"lockout"`
	Timezone      string        `toml:"timezone"`
	Registration  bool          `toml:"registration"`
	Private       bool          `toml:"private"`
	BindIP        bool          `toml:"bind_ip"`
	BindUserAgent bool          `toml:"bind_user_agent"`

	PasswordAlgorithm string `toml:"password_algorithm"`
	BcryptCost        int    `toml:"bcrypt_cost"`

	TwoFactorIssuer      string        `toml:"two_factor_issuer"`
	ExposeSecret         bool          `toml:"expose_secret"`
	TwoFactorMaxAttempts int           `toml:"two_factor_max_attempts"`
	TwoFactorCooldown    time.Duration `toml:"two_factor_cooldown"`

	AbuseEnabled  bool     `toml:"abuse"`
	AbuseKeywords []string `toml:"abuse_keywords"`

	UsageEnabled    bool     `toml:"usage"`
	UsageFlushEvery int      `toml:"usage_flush_every"`
	UsageIgnore     []string `toml:"usage_ignore"`

	Audit   bool `toml:"audit"`
	Metrics bool `toml:"metrics"`
}

type businessSection struct {
	Name        string `toml:"name"`
	Email       string `toml:"email"`
	Host        string `toml:"host"`
	RedirectURL string `toml:"redirect_url"`
}

type smtpSection struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type rateLimitSection struct {
	Limit  int           `toml:"limit"`
	Window time.Duration `toml:"window"`
}

func defaultFileConfig() fileConfig {
	d := saasAuth.DefaultConfig()
	r := rate.DefaultConfig()
	return fileConfig{
		Listen:      ":8080",
		MetricsPath: "/metrics",
		LogLevel:    "info",
		Storage: storageSection{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "sa",
		},
		Auth: authSection{
			Namespace:         d.Namespace,
			Lockout:           d.Lockout,
			Registration:      d.Registration,
			PasswordAlgorithm: string(d.Password.Algorithm),
			BcryptCost:        d.Password.BcryptCost,
			AbuseEnabled:      d.Abuse.Enabled,
			UsageEnabled:      d.Usage.Enabled,
			UsageFlushEvery:   d.Usage.FlushEvery,
			Metrics:           true,

			TwoFactorMaxAttempts: d.TwoFactor.MaxAttempts,
			TwoFactorCooldown:    d.TwoFactor.Cooldown,
		},
		Business: businessSection{RedirectURL: d.Business.RedirectURL},
		SMTP:     smtpSection{Port: 587},
		RateLimit: rateLimitSection{
			Limit:  r.Limit,
			Window: r.Window,
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// engineConfig maps the file onto saasAuth.Config.
func (c fileConfig) engineConfig() saasAuth.Config {
	cfg := saasAuth.DefaultConfig()
	cfg.Namespace = c.Auth.Namespace
	cfg.Lockout = c.Auth.Lockout
	cfg.Timezone = c.Auth.Timezone
	cfg.Registration = c.Auth.Registration
	cfg.Private = c.Auth.Private
	cfg.Business = saasAuth.BusinessConfig{
		Name:        c.Business.Name,
		Email:       c.Business.Email,
		Host:        c.Business.Host,
		RedirectURL: c.Business.RedirectURL,
	}
	cfg.Session = saasAuth.SessionConfig{BindIP: c.Auth.BindIP, BindUserAgent: c.Auth.BindUserAgent}
	cfg.Password.Algorithm = saasAuth.PasswordAlgorithm(c.Auth.PasswordAlgorithm)
	cfg.Password.BcryptCost = c.Auth.BcryptCost
	cfg.TwoFactor.Issuer = c.Auth.TwoFactorIssuer
	cfg.TwoFactor.ExposeSecret = c.Auth.ExposeSecret
	cfg.TwoFactor.MaxAttempts = c.Auth.TwoFactorMaxAttempts
	cfg.TwoFactor.Cooldown = c.Auth.TwoFactorCooldown
	cfg.Abuse.Enabled = c.Auth.AbuseEnabled
	cfg.Abuse.Keywords = c.Auth.AbuseKeywords
	cfg.Usage.Enabled = c.Auth.UsageEnabled
	cfg.Usage.FlushEvery = c.Auth.UsageFlushEvery
	cfg.Usage.Ignore = c.Auth.UsageIgnore
	cfg.Audit.Enabled = c.Auth.Audit
	cfg.Metrics.Enabled = c.Auth.Metrics
	cfg.Metrics.EnableLatencyHistograms = c.Auth.Metrics
	return cfg
}

// mailer returns nil when no relay is configured; the engine then answers
// mail operations with its not-configured result.
func (c fileConfig) mailer() mail.Mailer {
	if c.SMTP.Host == "" {
		return nil
	}
	return mail.NewSMTP(mail.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.Business.Email,
	})
}

func (c fileConfig) rateConfig() rate.Config {
	return rate.Config{Limit: c.RateLimit.Limit, Window: c.RateLimit.Window}
}

var errUnknownLogLevel = errors.New("unknown log level")

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

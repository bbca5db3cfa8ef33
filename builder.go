package saasAuth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/saasAuth/cache"
	"github.com/MrEthical07/saasAuth/internal/abuse"
	"github.com/MrEthical07/saasAuth/internal/rate"
	"github.com/MrEthical07/saasAuth/internal/stores"
	"github.com/MrEthical07/saasAuth/internal/usage"
	"github.com/MrEthical07/saasAuth/mail"
	"github.com/MrEthical07/saasAuth/password"
	"github.com/MrEthical07/saasAuth/session"
	"github.com/MrEthical07/saasAuth/store"
)

// Builder assembles an Engine. A Builder builds once.
type Builder struct {
	config Config

	db     store.Database
	cache  cache.Cache
	mailer mail.Mailer
	logger *slog.Logger
	clock  func() time.Time

	auditSink AuditSink

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDatabase sets the document store. Required.
func (b *Builder) WithDatabase(db store.Database) *Builder {
	b.db = db
	return b
}

// WithCache sets the ephemeral cache. Defaults to an in-process cache.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithMailer sets the outbound mailer. Without one, forgot and email
// verification fail with ErrMailerUnavailable.
func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLogger sets the structured logger. Defaults to discarding.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now. Tests use it to move through expirations.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.db == nil {
		return nil, errors.New("database required")
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, err
		}
		loc = l
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := b.cache
	if c == nil {
		c = cache.NewMemory()
	}
	mailer := b.mailer
	if mailer == nil {
		mailer = mail.Unconfigured{}
		logger.Warn("mail service is not configured")
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:   cfg,
		location: loc,
		clock:    clock,
		logger:   logger,
		db:       b.db,
		cache:    c,
		mailer:   mailer,
		hasher:   hasher,
	}

	e.users = store.NewCollection[User](b.db, cfg.collection("users"))
	e.enrollments = store.NewCollection[TwoFactorEnrollment](b.db, cfg.collection("two-factor"))
	e.sessions = session.NewManager(b.db, cfg.collection("sessions"), session.Config{
		Lifetime:      cfg.Lockout,
		BindIP:        cfg.Session.BindIP,
		BindUserAgent: cfg.Session.BindUserAgent,
	}, e.now, logger)
	e.tokens = stores.NewTokens(b.db, cfg.collection("tokens"))
	e.twoFactor = stores.NewTwoFactor(c, cfg.Namespace)
	e.totp = newTOTPManager(cfg.TwoFactor, cfg.Business.Name)
	e.failures = rate.NewFailures(c, cfg.Namespace+":tfa", rate.FailureConfig{
		MaxAttempts: cfg.TwoFactor.MaxAttempts,
		Cooldown:    cfg.TwoFactor.Cooldown,
	})
	if cfg.Abuse.Enabled {
		e.abuse = abuse.New(b.db, c, cfg.abuseConfig(), e.now)
	}
	if cfg.Usage.Enabled {
		e.usage = usage.NewTracker(b.db, cfg.usageConfig(), e.now)
	}
	e.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	e.metrics = NewMetrics(cfg.Metrics)

	b.built = true
	return e, nil
}

// newHasher returns the configured algorithm first, with the other one
// chained so existing hashes keep verifying after a switch.
func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a2, err := password.NewArgon2(password.Argon2Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if cfg.Algorithm == PasswordArgon2id {
		if err != nil {
			return nil, err
		}
		return password.NewChain(a2, bc), nil
	}
	if err != nil {
		// Argon2 parameters are only validated when argon2id is primary.
		return password.NewChain(bc), nil
	}
	return password.NewChain(bc, a2), nil
}

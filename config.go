package saasAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/saasAuth/internal/abuse"
	"github.com/MrEthical07/saasAuth/internal/usage"
	"golang.org/x/crypto/bcrypt"
)

// Config is the engine configuration. Build a Config with DefaultConfig,
// adjust it, and hand it to Builder.WithConfig; the engine keeps its own copy.
type Config struct {
	// Namespace prefixes every collection and key the engine touches.
	Namespace string
	// Lockout is the session lifetime.
	Lockout time.Duration
	// Timezone is an IANA zone name used for stored timestamps. Empty means UTC.
	Timezone string

	Business     BusinessConfig
	Registration bool
	// Private disables self-registration regardless of Registration.
	Private bool

	Events    Events
	Session   SessionConfig
	Password  PasswordConfig
	Tokens    TokenConfig
	TwoFactor TwoFactorConfig
	Abuse     AbuseConfig
	Usage     UsageConfig
	Audit     AuditConfig
	Metrics   MetricsConfig

	// ResetVerificationOnUsernameChange clears verified_email when a user
	// changes their username.
	ResetVerificationOnUsernameChange bool
}

// BusinessConfig feeds outbound mail. Host is the public base URL links are
// built from.
type BusinessConfig struct {
	Name        string
	Email       string
	Host        string
	RedirectURL string
}

/*
====================================
EVENTS
====================================
*/

// EventType names a lifecycle notification.
type EventType string

const (
	EventLogin           EventType = "login"
	EventRegister        EventType = "register"
	EventLogout          EventType = "logout"
	EventReset           EventType = "reset"
	EventVerify          EventType = "verify"
	EventUpdate          EventType = "update"
	EventFailedTwoFactor EventType = "failed_two_factor"
)

// Event is passed to notification hooks.
type Event struct {
	Type      EventType
	UserID    string
	Username  string
	SessionID string
	IP        string
	Time      time.Time
	// Fields lists the keys changed by an update.
	Fields []string
}

// Events is the optional hook table. Nil hooks are skipped.
//
// BeforeLogin and BeforeRegister run before the session is issued (or the
// user persisted) and veto the operation by returning an error, which is
// passed to the caller unchanged. BeforeRegister may also modify the user.
// The notification hooks run synchronously after the operation succeeded.
type Events struct {
	BeforeLogin    func(ctx context.Context, user *User) error
	BeforeRegister func(ctx context.Context, user *User) error

	Login           func(ctx context.Context, ev Event)
	Register        func(ctx context.Context, ev Event)
	Logout          func(ctx context.Context, ev Event)
	Reset           func(ctx context.Context, ev Event)
	Verify          func(ctx context.Context, ev Event)
	Update          func(ctx context.Context, ev Event)
	FailedTwoFactor func(ctx context.Context, ev Event)
}

/*
====================================
SESSION / PASSWORD / TOKENS
====================================
*/

// SessionConfig controls client binding. When a switch is on, a session is
// only accepted from a client presenting the same attribute it was issued to.
type SessionConfig struct {
	BindIP        bool
	BindUserAgent bool
}

// PasswordAlgorithm selects the hasher for new hashes.
type PasswordAlgorithm string

const (
	PasswordBcrypt   PasswordAlgorithm = "bcrypt"
	PasswordArgon2id PasswordAlgorithm = "argon2id"
)

type PasswordConfig struct {
	Algorithm  PasswordAlgorithm
	BcryptCost int

	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	// UpgradeOnLogin re-hashes a verified password when the stored hash uses
	// another algorithm or weaker parameters.
	UpgradeOnLogin bool
}

type TokenConfig struct {
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
}

/*
====================================
TWO-FACTOR
====================================
*/

// TwoFactorConfig tunes TOTP enrollment and verification.
type TwoFactorConfig struct {
	// Issuer shown by authenticator apps. Empty falls back to Business.Name.
	Issuer string
	Digits int
	Period time.Duration
	// Skew is the number of periods accepted either side of now.
	Skew       uint
	AttemptTTL time.Duration
	// ExposeSecret includes the raw secret in the enrollment response for
	// manual entry.
	ExposeSecret bool
	QRCodeSize   int
	// MaxAttempts wrong codes per user lock code checks for Cooldown.
	MaxAttempts int
	Cooldown    time.Duration
}

/*
====================================
ABUSE / USAGE
====================================
*/

// AbuseConfig controls the IP blacklist heuristic. Nil Keywords uses the
// built-in scanner list.
type AbuseConfig struct {
	Enabled   bool
	Keywords  []string
	MirrorTTL time.Duration
}

// UsageConfig controls request counters. FlushEvery is the number of tracked
// requests between tenant-total writes.
type UsageConfig struct {
	Enabled    bool
	FlushEvery int
	Ignore     []string
}

/*
====================================
AUDIT / METRICS
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the recommended baseline.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Namespace:    "app",
		Lockout:      24 * time.Hour,
		Registration: true,
		Business: BusinessConfig{
			RedirectURL: "/",
		},
		Password: PasswordConfig{
			Algorithm:      PasswordBcrypt,
			BcryptCost:     10,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Tokens: TokenConfig{
			PasswordResetTTL:     time.Hour,
			EmailVerificationTTL: 15 * time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			Digits:      6,
			Period:      30 * time.Second,
			Skew:        1,
			AttemptTTL:  10 * time.Minute,
			QRCodeSize:  256,
			MaxAttempts: 5,
			Cooldown:    time.Minute,
		},
		Abuse: AbuseConfig{
			Enabled:   true,
			MirrorTTL: 5 * time.Minute,
		},
		Usage: UsageConfig{
			Enabled:    true,
			FlushEvery: 10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		ResetVerificationOnUsernameChange: true,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Abuse.Keywords = cloneStrings(cfg.Abuse.Keywords)
	out.Usage.Ignore = cloneStrings(cfg.Usage.Ignore)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return errors.New("Namespace must not be empty")
	}
	if strings.ContainsAny(c.Namespace, "/: ") {
		return errors.New("Namespace must not contain '/', ':' or spaces")
	}
	if c.Lockout <= 0 {
		return errors.New("Lockout must be > 0")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return errors.New("Timezone is not a known location")
		}
	}

	switch c.Password.Algorithm {
	case PasswordBcrypt:
		if c.Password.BcryptCost != 0 &&
			(c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost) {
			return errors.New("Password BcryptCost is out of range")
		}
	case PasswordArgon2id:
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2id'")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	if c.Tokens.PasswordResetTTL <= 0 {
		return errors.New("Tokens PasswordResetTTL must be > 0")
	}
	if c.Tokens.EmailVerificationTTL <= 0 {
		return errors.New("Tokens EmailVerificationTTL must be > 0")
	}

	if c.TwoFactor.Digits != 6 && c.TwoFactor.Digits != 8 {
		return errors.New("TwoFactor Digits must be 6 or 8")
	}
	if c.TwoFactor.Period < time.Second || c.TwoFactor.Period%time.Second != 0 {
		return errors.New("TwoFactor Period must be a whole number of seconds")
	}
	if c.TwoFactor.Skew > 3 {
		return errors.New("TwoFactor Skew must be <= 3")
	}
	if c.TwoFactor.AttemptTTL <= 0 {
		return errors.New("TwoFactor AttemptTTL must be > 0")
	}
	if c.TwoFactor.QRCodeSize < 64 {
		return errors.New("TwoFactor QRCodeSize must be >= 64")
	}
	if c.TwoFactor.MaxAttempts <= 0 {
		return errors.New("TwoFactor MaxAttempts must be > 0")
	}
	if c.TwoFactor.Cooldown <= 0 {
		return errors.New("TwoFactor Cooldown must be > 0")
	}

	if c.Usage.Enabled && c.Usage.FlushEvery <= 0 {
		return errors.New("Usage FlushEvery must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

// RegistrationOpen reports whether self-registration is allowed.
func (c *Config) RegistrationOpen() bool {
	return c.Registration && !c.Private
}

func (c *Config) collection(name string) string {
	return c.Namespace + "/" + name
}

func (c *Config) abuseConfig() abuse.Config {
	return abuse.Config{Namespace: c.Namespace, Keywords: c.Abuse.Keywords, MirrorTTL: c.Abuse.MirrorTTL}
}

func (c *Config) usageConfig() usage.Config {
	return usage.Config{Namespace: c.Namespace, FlushEvery: c.Usage.FlushEvery, Ignore: c.Usage.Ignore}
}

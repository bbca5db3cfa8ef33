package saasAuth

import (
	"time"

	"github.com/MrEthical07/saasAuth/internal/abuse"
	"github.com/MrEthical07/saasAuth/internal/usage"
	"github.com/MrEthical07/saasAuth/session"
)

// Session is a persisted login session.
type Session = session.Session

// Client identifies the requesting client for session binding.
type Client = session.Client

// UsageCounters are per-day request counts.
type UsageCounters = usage.Usage

// BlacklistEntry records one banned IP and the path that got it banned.
type BlacklistEntry = abuse.Entry

// User is the stored account record. Password holds the hash and is cleared
// by Sanitized before the record leaves the engine.
type User struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Password      string         `json:"password,omitempty"`
	Namespace     string         `json:"namespace"`
	PublicKey     string         `json:"public_key"`
	PrivateKey    string         `json:"private_key"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
	LastLogin     *time.Time     `json:"last_login,omitempty"`
	VerifiedEmail bool           `json:"verified_email"`
	Usage         *UsageCounters `json:"usage,omitempty"`
}

// Sanitized returns a copy without the password hash.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Password = ""
	if u.Metadata != nil {
		c.Metadata = make(map[string]any, len(u.Metadata))
		for k, v := range u.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// AuthMethod records which credential resolved an identity.
type AuthMethod string

const (
	AuthPublicKey  AuthMethod = "public_key"
	AuthPrivateKey AuthMethod = "private_key"
	AuthSession    AuthMethod = "session"
)

// Credentials are the raw values a request presented. Empty fields are
// treated as absent.
type Credentials struct {
	SessionID  string
	PrivateKey string
	PublicKey  string
	Client     Client
}

// Identity is a resolved caller. Session is set only for session auth.
type Identity struct {
	User    *User
	Session *Session
	Method  AuthMethod
}

// RegisterRequest carries the register inputs.
type RegisterRequest struct {
	Username string
	Password string
	Metadata map[string]any
	Client   Client
}

// LoginRequest carries the login inputs. Code is the TOTP code, required
// only for users with two-factor enabled.
type LoginRequest struct {
	Username string
	Password string
	Code     string
	Client   Client
}

// SessionResult is returned whenever a session is issued.
type SessionResult struct {
	Session    string    `json:"session"`
	Expiration time.Time `json:"expiration"`
	Username   string    `json:"username,omitempty"`
}

// LoginResult is either a session or, for enrolled users who sent no code,
// TwoFactorRequired with no session.
type LoginResult struct {
	SessionResult
	TwoFactorRequired bool `json:"twoFactorRequired,omitempty"`
}

// TwoFactorEnrollment is a confirmed TOTP secret. LastStep is the newest
// time step accepted from it; codes at or below it are spent.
type TwoFactorEnrollment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Secret    string    `json:"secret"`
	LastStep  int64     `json:"last_step,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TwoFactorSetup is returned by BeginTwoFactor. The caller confirms it with a
// code generated from URI before ExpiresAt.
type TwoFactorSetup struct {
	AttemptID string    `json:"id"`
	URI       string    `json:"uri"`
	QRCode    string    `json:"qr,omitempty"`
	Secret    string    `json:"secret,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AbuseVerdict is the outcome of CheckRequest.
type AbuseVerdict int

const (
	AbuseAllowed AbuseVerdict = iota
	// AbuseBlacklisted means the IP was banned by an earlier request.
	AbuseBlacklisted
	// AbuseBanned means this request triggered the ban.
	AbuseBanned
)

func (v AbuseVerdict) String() string {
	switch v {
	case AbuseBlacklisted:
		return "blacklisted"
	case AbuseBanned:
		return "banned"
	default:
		return "allowed"
	}
}

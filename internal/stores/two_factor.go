package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/saasAuth/cache"
)

var (
	// ErrAttemptNotFound is returned for missing or expired enrollment attempts.
	ErrAttemptNotFound = errors.New("two-factor attempt not found")
)

// TwoFactorAttempt is a pending enrollment awaiting its first code.
type TwoFactorAttempt struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Secret    string    `json:"secret"`
	IP        string    `json:"ip,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TwoFactor keeps enrollment attempts and used-code markers in the cache.
type TwoFactor struct {
	cache     cache.Cache
	namespace string
}

func NewTwoFactor(c cache.Cache, namespace string) *TwoFactor {
	return &TwoFactor{cache: c, namespace: namespace}
}

func (s *TwoFactor) attemptKey(id string) string {
	return s.namespace + ":tfa:attempt:" + id
}

func (s *TwoFactor) usedKey(userID, code string) string {
	return s.namespace + ":tfa:used:" + userID + ":" + code
}

// SaveAttempt caches a for ttl.
func (s *TwoFactor) SaveAttempt(ctx context.Context, a *TwoFactorAttempt, ttl time.Duration) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode two-factor attempt: %w", err)
	}
	return s.cache.Set(ctx, s.attemptKey(a.ID), data, ttl)
}

// LoadAttempt returns the attempt or ErrAttemptNotFound. now guards against
// caches that outlive the TTL.
func (s *TwoFactor) LoadAttempt(ctx context.Context, id string, now time.Time) (*TwoFactorAttempt, error) {
	if id == "" {
		return nil, ErrAttemptNotFound
	}
	data, err := s.cache.Get(ctx, s.attemptKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	var a TwoFactorAttempt
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode two-factor attempt: %w", err)
	}
	if !now.Before(a.ExpiresAt) {
		_ = s.cache.Delete(ctx, s.attemptKey(id))
		return nil, ErrAttemptNotFound
	}
	return &a, nil
}

func (s *TwoFactor) DeleteAttempt(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, s.attemptKey(id))
}

// MarkCodeUsed records code as spent for userID. It reports false when the
// code was already spent inside ttl.
func (s *TwoFactor) MarkCodeUsed(ctx context.Context, userID, code string, ttl time.Duration) (bool, error) {
	return s.cache.Add(ctx, s.usedKey(userID, code), []byte{1}, ttl)
}

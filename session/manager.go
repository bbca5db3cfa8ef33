package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/saasAuth/internal"
	"github.com/MrEthical07/saasAuth/store"
)

var (
	// ErrNotFound is returned when no session has the presented id.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when the session reached its expiration.
	ErrExpired = errors.New("session expired")
	// ErrFingerprintMismatch is returned when a bound session is presented by a different client.
	ErrFingerprintMismatch = errors.New("session fingerprint mismatch")
	// ErrNotOwner is returned when refreshing a session that belongs to another user.
	ErrNotOwner = errors.New("session belongs to another user")
	// ErrIssueFailed is returned when refresh removed the old session but could not write the new one.
	ErrIssueFailed = errors.New("session issue failed")
)

// Config controls lifetime and client binding.
type Config struct {
	Lifetime      time.Duration
	BindIP        bool
	BindUserAgent bool
}

// Manager owns the sessions collection.
type Manager struct {
	sessions *store.Collection[Session]
	config   Config
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager binds a Manager to collection in db. now and logger may be nil.
func NewManager(db store.Database, collection string, cfg Config, now func() time.Time, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		sessions: store.NewCollection[Session](db, collection),
		config:   cfg,
		now:      now,
		logger:   logger,
	}
}

// Issue creates and persists a new session for userID.
func (m *Manager) Issue(ctx context.Context, userID string, client Client) (*Session, error) {
	id, err := internal.NewOpaqueID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := &Session{
		ID:          id,
		UserID:      userID,
		CreatedAt:   now,
		Expiration:  now.Add(m.config.Lifetime),
		IPAddress:   client.IP,
		Fingerprint: m.fingerprint(client),
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Lookup resolves a presented session id. Expired sessions are removed on the
// way out; a failed removal is logged and does not change the result.
func (m *Manager) Lookup(ctx context.Context, id string, client Client) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	sess, err := m.sessions.FindOne(ctx, store.Filter{"id": id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if sess.Expired(m.now()) {
		if err := m.sessions.Remove(ctx, sess.ID); err != nil {
			m.logger.WarnContext(ctx, "expired session cleanup failed", "error", err)
		}
		return nil, ErrExpired
	}

	if want := m.fingerprint(client); want != "" && want != sess.Fingerprint {
		return nil, ErrFingerprintMismatch
	}

	return sess, nil
}

// Refresh replaces oldID with a fresh session for the same user. Expired and
// rebound sessions are rejected like in Lookup. The old record is deleted
// first; if writing the new one then fails the caller gets
// ErrIssueFailed and is logged out.
func (m *Manager) Refresh(ctx context.Context, oldID, userID string, client Client) (*Session, error) {
	old, err := m.sessions.FindOne(ctx, store.Filter{"id": oldID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if old.UserID != userID {
		return nil, ErrNotOwner
	}
	if old.Expired(m.now()) {
		if err := m.sessions.Remove(ctx, oldID); err != nil {
			m.logger.WarnContext(ctx, "expired session cleanup failed", "error", err)
		}
		return nil, ErrExpired
	}
	if want := m.fingerprint(client); want != "" && want != old.Fingerprint {
		return nil, ErrFingerprintMismatch
	}

	if err := m.sessions.Remove(ctx, oldID); err != nil {
		return nil, err
	}

	sess, err := m.Issue(ctx, userID, client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIssueFailed, err)
	}
	return sess, nil
}

// End deletes a session. Ending an unknown session is not an error.
func (m *Manager) End(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.sessions.Remove(ctx, id)
}

// EndAll deletes every session of userID and returns how many were removed.
func (m *Manager) EndAll(ctx context.Context, userID string) (int, error) {
	all, err := m.sessions.Find(ctx, store.Filter{"userId": userID})
	if err != nil {
		return 0, err
	}

	var firstErr error
	removed := 0
	for _, s := range all {
		if err := m.sessions.Remove(ctx, s.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

func (m *Manager) fingerprint(client Client) string {
	var ip, ua string
	if m.config.BindIP {
		ip = "ip:" + client.IP
	}
	if m.config.BindUserAgent {
		ua = "ua:" + client.UserAgent
	}
	return internal.Fingerprint(ip, ua)
}

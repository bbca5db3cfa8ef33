package saasAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/saasAuth/session"
	"github.com/MrEthical07/saasAuth/store"
)

// ResolveIdentity resolves the caller from the presented credentials. The
// first non-empty credential in the order public key, private key, session
// decides; a credential that matches nothing yields an anonymous caller
// (nil, nil). Errors are reserved for store failures.
func (e *Engine) ResolveIdentity(ctx context.Context, creds Credentials) (*Identity, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricResolveLatency, time.Since(start)) }()
	}

	switch {
	case creds.PublicKey != "":
		return e.resolveKey(ctx, "public_key", creds.PublicKey, AuthPublicKey)
	case creds.PrivateKey != "":
		return e.resolveKey(ctx, "private_key", creds.PrivateKey, AuthPrivateKey)
	case creds.SessionID != "":
		return e.resolveSession(ctx, creds.SessionID, clientFrom(ctx, creds.Client))
	default:
		return nil, nil
	}
}

func (e *Engine) resolveKey(ctx context.Context, field, key string, method AuthMethod) (*Identity, error) {
	u, err := e.findUser(ctx, store.Filter{field: key})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil
		}
		return nil, e.internal(ctx, "resolve_key", err)
	}
	return &Identity{User: u, Method: method}, nil
}

func (e *Engine) resolveSession(ctx context.Context, id string, client Client) (*Identity, error) {
	sess, err := e.sessions.Lookup(ctx, id, client)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound),
			errors.Is(err, session.ErrExpired),
			errors.Is(err, session.ErrFingerprintMismatch):
			e.metricInc(MetricSessionRejected)
			return nil, nil
		}
		return nil, e.internal(ctx, "resolve_session", err)
	}

	u, err := e.findUser(ctx, store.Filter{"id": sess.UserID})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil
		}
		return nil, e.internal(ctx, "resolve_session", err)
	}
	return &Identity{User: u, Session: sess, Method: AuthSession}, nil
}

// issueSession creates a session for u and reports it.
func (e *Engine) issueSession(ctx context.Context, u *User, client Client) (*Session, error) {
	sess, err := e.sessions.Issue(ctx, u.ID, client)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionCreated)
	return sess, nil
}

// Refresh replaces the caller's session with a new one. The old session is
// unusable afterwards even when issuing the new one fails; that failure is
// reported as ErrSessionIssueFailed.
func (e *Engine) Refresh(ctx context.Context, sessionID string, user *User, client Client) (*SessionResult, error) {
	if sessionID == "" || user == nil {
		return nil, ErrSessionRequired
	}
	client = clientFrom(ctx, client)

	sess, err := e.sessions.Refresh(ctx, sessionID, user.ID, client)
	if err != nil {
		e.emitAudit(ctx, auditEventSessionRefresh, user.ID, sessionID, client.IP, err, nil)
		switch {
		case errors.Is(err, session.ErrNotFound),
			errors.Is(err, session.ErrNotOwner),
			errors.Is(err, session.ErrExpired),
			errors.Is(err, session.ErrFingerprintMismatch):
			return nil, ErrSessionInvalid
		case errors.Is(err, session.ErrIssueFailed):
			e.logger.ErrorContext(ctx, "session refresh lost the session", "user_id", user.ID, "error", err)
			return nil, ErrSessionIssueFailed
		}
		return nil, e.internal(ctx, "refresh", err)
	}

	e.metricInc(MetricSessionRefreshed)
	e.emitAudit(ctx, auditEventSessionRefresh, user.ID, sess.ID, client.IP, nil, nil)
	return &SessionResult{Session: sess.ID, Expiration: sess.Expiration}, nil
}

// Logout ends one session. Unknown sessions are not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string, user *User) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if err := e.sessions.End(ctx, sessionID); err != nil {
		return e.internal(ctx, "logout", err)
	}

	e.metricInc(MetricLogout)
	ev := Event{Type: EventLogout, SessionID: sessionID, IP: clientIPFromContext(ctx)}
	if user != nil {
		ev.UserID, ev.Username = user.ID, user.Username
	}
	e.emitAudit(ctx, auditEventLogout, ev.UserID, sessionID, ev.IP, nil, nil)
	e.notify(ctx, e.config.Events.Logout, ev)
	return nil
}

// LogoutAll ends every session of userID and returns how many were removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	n, err := e.sessions.EndAll(ctx, userID)
	if err != nil {
		return n, e.internal(ctx, "logout_all", err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, userID, "", clientIPFromContext(ctx), nil, nil)
	return n, nil
}

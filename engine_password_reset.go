package saasAuth

import (
	"context"
	"errors"
	"net/url"

	"github.com/MrEthical07/saasAuth/internal/stores"
	"github.com/MrEthical07/saasAuth/mail"
	"github.com/MrEthical07/saasAuth/store"
)

// Forgot mails a password reset link to username. Unknown accounts are
// reported as ErrAccountNotFound.
func (e *Engine) Forgot(ctx context.Context, username string) (mail.Result, error) {
	ip := clientIPFromContext(ctx)
	fail := func(userID string, err error) (mail.Result, error) {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetRequest, userID, "", ip, err, nil)
		return mail.Result{}, err
	}

	username, err := normalizeUsername(username)
	if err != nil {
		return fail("", err)
	}
	u, err := e.findUser(ctx, store.Filter{"username": username})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fail("", ErrAccountNotFound)
		}
		return fail("", e.internal(ctx, "forgot", err))
	}

	tok, err := e.issueToken(ctx, u.ID, stores.TokenPasswordReset, e.config.Tokens.PasswordResetTTL)
	if err != nil {
		return fail(u.ID, e.internal(ctx, "forgot", err))
	}

	msg, err := mail.PasswordReset(u.Username, e.linkData("/reset?token="+url.QueryEscape(tok.ID)))
	if err != nil {
		return fail(u.ID, e.internal(ctx, "forgot", err))
	}
	res, err := e.deliver(ctx, msg)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, u.ID, "", ip, err, nil)
		return res, err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, u.ID, "", ip, nil, nil)
	return res, nil
}

// Reset consumes a password reset token, stores the new password, ends every
// session of the user and logs them in again.
func (e *Engine) Reset(ctx context.Context, tokenID, newPassword string, client Client) (*SessionResult, error) {
	client = clientFrom(ctx, client)
	fail := func(userID string, err error) (*SessionResult, error) {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, userID, "", client.IP, err, nil)
		return nil, err
	}

	if tokenID == "" {
		return fail("", ErrInvalidOrExpiredToken)
	}
	// Check the policy before burning the token.
	hash, err := e.hash(newPassword)
	if err != nil {
		if errors.Is(err, ErrPasswordPolicy) {
			return fail("", ErrPasswordPolicy)
		}
		return fail("", e.internal(ctx, "reset", err))
	}

	tok, err := e.tokens.Consume(ctx, tokenID, stores.TokenPasswordReset, e.now())
	if err != nil {
		if errors.Is(err, stores.ErrTokenInvalid) {
			return fail("", ErrInvalidOrExpiredToken)
		}
		return fail("", e.internal(ctx, "reset", err))
	}

	u, err := e.findUser(ctx, store.Filter{"id": tok.UserID})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fail(tok.UserID, ErrInvalidOrExpiredToken)
		}
		return fail(tok.UserID, e.internal(ctx, "reset", err))
	}

	if err := e.users.Update(ctx, u.ID, store.Document{"password": hash, "updated_at": e.now()}); err != nil {
		return fail(u.ID, e.internal(ctx, "reset", err))
	}

	if _, err := e.sessions.EndAll(ctx, u.ID); err != nil {
		return fail(u.ID, e.internal(ctx, "reset", err))
	}

	sess, err := e.issueSession(ctx, u, client)
	if err != nil {
		return fail(u.ID, e.internal(ctx, "reset", err))
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, u.ID, sess.ID, client.IP, nil, nil)
	e.notify(ctx, e.config.Events.Reset, Event{
		Type:      EventReset,
		UserID:    u.ID,
		Username:  u.Username,
		SessionID: sess.ID,
		IP:        client.IP,
	})
	return &SessionResult{Session: sess.ID, Expiration: sess.Expiration, Username: u.Username}, nil
}

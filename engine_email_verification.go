package saasAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/saasAuth/internal/stores"
	"github.com/MrEthical07/saasAuth/mail"
	"github.com/MrEthical07/saasAuth/store"
)

// RequestEmailVerification mails a verification link to the user's address.
func (e *Engine) RequestEmailVerification(ctx context.Context, user *User) (mail.Result, error) {
	if user == nil {
		return mail.Result{}, ErrUnauthenticated
	}
	ip := clientIPFromContext(ctx)

	tok, err := e.issueToken(ctx, user.ID, stores.TokenEmailVerification, e.config.Tokens.EmailVerificationTTL)
	if err != nil {
		err = e.internal(ctx, "request_email_verification", err)
		e.emitAudit(ctx, auditEventEmailVerificationSend, user.ID, "", ip, err, nil)
		return mail.Result{}, err
	}

	msg, err := mail.EmailVerification(user.Username, e.linkData("/user/validate/email/"+tok.ID))
	if err != nil {
		return mail.Result{}, e.internal(ctx, "request_email_verification", err)
	}
	res, err := e.deliver(ctx, msg)
	e.emitAudit(ctx, auditEventEmailVerificationSend, user.ID, "", ip, err, nil)
	if err != nil {
		return res, err
	}
	e.metricInc(MetricEmailVerificationRequest)
	return res, nil
}

// ConfirmEmailToken marks the token's user as verified and returns the
// configured redirect target.
func (e *Engine) ConfirmEmailToken(ctx context.Context, tokenID string) (string, error) {
	ip := clientIPFromContext(ctx)
	fail := func(userID string, err error) (string, error) {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationVerify, userID, "", ip, err, nil)
		return "", err
	}

	if tokenID == "" {
		return fail("", ErrInvalidOrExpiredToken)
	}
	tok, err := e.tokens.Consume(ctx, tokenID, stores.TokenEmailVerification, e.now())
	if err != nil {
		if errors.Is(err, stores.ErrTokenInvalid) {
			return fail("", ErrInvalidOrExpiredToken)
		}
		return fail("", e.internal(ctx, "confirm_email", err))
	}

	u, err := e.findUser(ctx, store.Filter{"id": tok.UserID})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fail(tok.UserID, ErrInvalidOrExpiredToken)
		}
		return fail(tok.UserID, e.internal(ctx, "confirm_email", err))
	}
	if err := e.users.Update(ctx, u.ID, store.Document{"verified_email": true}); err != nil {
		return fail(u.ID, e.internal(ctx, "confirm_email", err))
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationVerify, u.ID, "", ip, nil, nil)
	e.notify(ctx, e.config.Events.Verify, Event{
		Type:     EventVerify,
		UserID:   u.ID,
		Username: u.Username,
		IP:       ip,
	})
	return e.config.Business.RedirectURL, nil
}

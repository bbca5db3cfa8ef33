package saasAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/saasAuth/internal"
	"github.com/MrEthical07/saasAuth/internal/rate"
	"github.com/MrEthical07/saasAuth/internal/stores"
	"github.com/MrEthical07/saasAuth/store"
)

// HasTwoFactor returns the user's enrollment, or nil when two-factor is off.
func (e *Engine) HasTwoFactor(ctx context.Context, userID string) (*TwoFactorEnrollment, error) {
	all, err := e.enrollments.Find(ctx, store.Filter{"userId": userID})
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	latest := all[0]
	for _, en := range all[1:] {
		if en.CreatedAt.After(latest.CreatedAt) {
			latest = en
		}
	}
	return &latest, nil
}

// BeginTwoFactor starts an enrollment. The returned setup always carries the
// secret; callers decide whether to show it.
func (e *Engine) BeginTwoFactor(ctx context.Context, user *User, client Client) (*TwoFactorSetup, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	client = clientFrom(ctx, client)

	secret, uri, err := e.totp.Generate(user.Username)
	if err != nil {
		return nil, e.internal(ctx, "begin_two_factor", err)
	}
	qrCode, err := e.totp.QRCode(uri)
	if err != nil {
		return nil, e.internal(ctx, "begin_two_factor", err)
	}
	id, err := internal.NewOpaqueID()
	if err != nil {
		return nil, e.internal(ctx, "begin_two_factor", err)
	}

	attempt := &stores.TwoFactorAttempt{
		ID:        id,
		UserID:    user.ID,
		Secret:    secret,
		IP:        client.IP,
		ExpiresAt: e.now().Add(e.config.TwoFactor.AttemptTTL),
	}
	if err := e.twoFactor.SaveAttempt(ctx, attempt, e.config.TwoFactor.AttemptTTL); err != nil {
		return nil, e.internal(ctx, "begin_two_factor", err)
	}

	e.emitAudit(ctx, auditEventTwoFactorBegin, user.ID, "", client.IP, nil, nil)
	return &TwoFactorSetup{
		AttemptID: id,
		URI:       uri,
		QRCode:    qrCode,
		Secret:    secret,
		ExpiresAt: attempt.ExpiresAt,
	}, nil
}

// ConfirmTwoFactor finishes an enrollment with the first code from the
// authenticator. Any previous enrollment is replaced.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, user *User, attemptID, code string) error {
	if user == nil {
		return ErrUnauthenticated
	}
	ip := clientIPFromContext(ctx)

	attempt, err := e.twoFactor.LoadAttempt(ctx, attemptID, e.now())
	if err != nil {
		if errors.Is(err, stores.ErrAttemptNotFound) {
			return ErrInvalidAttempt
		}
		return e.internal(ctx, "confirm_two_factor", err)
	}
	if attempt.UserID != user.ID {
		return ErrInvalidAttempt
	}
	if e.codeLocked(ctx, user.ID) {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorEnabled, user.ID, "", ip, ErrTwoFactorLocked, nil)
		return ErrTwoFactorLocked
	}
	step, ok := e.totp.Verify(code, attempt.Secret, e.now())
	if !ok {
		err := e.codeFailed(ctx, user.ID, ErrInvalidCode)
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorEnabled, user.ID, "", ip, err, nil)
		return err
	}

	if err := e.removeEnrollments(ctx, user.ID); err != nil {
		return e.internal(ctx, "confirm_two_factor", err)
	}
	enrollment := &TwoFactorEnrollment{
		ID:        internal.NewRecordID(),
		UserID:    user.ID,
		Secret:    attempt.Secret,
		LastStep:  step,
		CreatedAt: e.now(),
	}
	if err := e.enrollments.Create(ctx, enrollment); err != nil {
		return e.internal(ctx, "confirm_two_factor", err)
	}
	if _, err := e.twoFactor.MarkCodeUsed(ctx, user.ID, code, e.totp.replayWindow()); err != nil {
		e.logger.WarnContext(ctx, "marking confirmation code used failed", "user_id", user.ID, "error", err)
	}
	e.codeAccepted(ctx, user.ID)
	if err := e.twoFactor.DeleteAttempt(ctx, attemptID); err != nil {
		e.logger.WarnContext(ctx, "two-factor attempt cleanup failed", "user_id", user.ID, "error", err)
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditEventTwoFactorEnabled, user.ID, "", ip, nil, nil)
	return nil
}

// DisableTwoFactor removes the enrollment after checking a current code that
// has not been used yet.
func (e *Engine) DisableTwoFactor(ctx context.Context, user *User, code string) error {
	if user == nil {
		return ErrUnauthenticated
	}
	ip := clientIPFromContext(ctx)

	enrollment, err := e.HasTwoFactor(ctx, user.ID)
	if err != nil {
		return e.internal(ctx, "disable_two_factor", err)
	}
	if enrollment == nil {
		return ErrNotEnrolled
	}
	if e.codeLocked(ctx, user.ID) {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorDisabled, user.ID, "", ip, ErrTwoFactorLocked, nil)
		return ErrTwoFactorLocked
	}
	step, ok := e.totp.Verify(code, enrollment.Secret, e.now())
	if ok && step <= enrollment.LastStep {
		ok = false
	}
	if !ok {
		err := e.codeFailed(ctx, user.ID, ErrInvalidCode)
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorDisabled, user.ID, "", ip, err, nil)
		return err
	}
	if err := e.removeEnrollments(ctx, user.ID); err != nil {
		return e.internal(ctx, "disable_two_factor", err)
	}
	e.codeAccepted(ctx, user.ID)

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, user.ID, "", ip, nil, nil)
	return nil
}

func (e *Engine) removeEnrollments(ctx context.Context, userID string) error {
	all, err := e.enrollments.Find(ctx, store.Filter{"userId": userID})
	if err != nil {
		return err
	}
	for _, en := range all {
		if err := e.enrollments.Remove(ctx, en.ID); err != nil {
			return err
		}
	}
	return nil
}

// spendStep records step as the newest accepted one on enrollment. It reports
// false when step, or the same code through the cache, was already used. The
// enrollment record is authoritative; the cache only catches concurrent
// replays across instances sharing it.
func (e *Engine) spendStep(ctx context.Context, enrollment *TwoFactorEnrollment, code string, step int64) (bool, error) {
	if step <= enrollment.LastStep {
		return false, nil
	}
	fresh, err := e.twoFactor.MarkCodeUsed(ctx, enrollment.UserID, code, e.totp.replayWindow())
	if err != nil {
		e.logger.WarnContext(ctx, "two-factor code marker unavailable", "user_id", enrollment.UserID, "error", err)
	} else if !fresh {
		return false, nil
	}
	if err := e.enrollments.Update(ctx, enrollment.ID, store.Document{"last_step": step}); err != nil {
		return false, err
	}
	enrollment.LastStep = step
	return true, nil
}

// codeLocked reports whether userID used up its code attempts. An unreachable
// counter is logged and does not lock.
func (e *Engine) codeLocked(ctx context.Context, userID string) bool {
	err := e.failures.Check(ctx, userID)
	if err == nil {
		return false
	}
	if errors.Is(err, rate.ErrRateLimited) {
		return true
	}
	e.logger.WarnContext(ctx, "two-factor failure counter unavailable", "user_id", userID, "error", err)
	return false
}

// codeFailed counts a wrong code and returns the error to report: invalid,
// or ErrTwoFactorLocked when this miss used up the last attempt.
func (e *Engine) codeFailed(ctx context.Context, userID string, invalid *Error) error {
	err := e.failures.RecordFailure(ctx, userID)
	if err == nil {
		return invalid
	}
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrTwoFactorLocked
	}
	e.logger.WarnContext(ctx, "two-factor failure counter unavailable", "user_id", userID, "error", err)
	return invalid
}

func (e *Engine) codeAccepted(ctx context.Context, userID string) {
	if err := e.failures.Reset(ctx, userID); err != nil {
		e.logger.WarnContext(ctx, "two-factor failure counter reset failed", "user_id", userID, "error", err)
	}
}

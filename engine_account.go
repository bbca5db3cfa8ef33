package saasAuth

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/MrEthical07/saasAuth/internal"
	"github.com/MrEthical07/saasAuth/password"
	"github.com/MrEthical07/saasAuth/store"
)

var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// normalizeUsername lowercases and trims u and checks it looks like an email.
func normalizeUsername(u string) (string, error) {
	u = strings.ToLower(strings.TrimSpace(u))
	if !emailShape.MatchString(u) {
		return "", ErrInvalidUsername
	}
	return u, nil
}

// Register creates an account and logs it in.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*SessionResult, error) {
	client := clientFrom(ctx, req.Client)
	fail := func(err error) (*SessionResult, error) {
		e.metricInc(MetricRegisterRejected)
		e.emitAudit(ctx, auditEventRegisterFailure, "", "", client.IP, err, nil)
		return nil, err
	}

	if !e.config.RegistrationOpen() {
		return fail(ErrRegistrationDisabled)
	}
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return fail(err)
	}

	switch _, err := e.findUser(ctx, store.Filter{"username": username}); {
	case err == nil:
		return fail(ErrAccountExists)
	case !errors.Is(err, ErrAccountNotFound):
		return fail(e.internal(ctx, "register", err))
	}

	hash, err := e.hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordPolicy) {
			return fail(ErrPasswordPolicy)
		}
		return fail(e.internal(ctx, "register", err))
	}

	u := &User{
		ID:         internal.NewRecordID(),
		Username:   username,
		Password:   hash,
		Namespace:  internal.NewNamespace(),
		PublicKey:  internal.NewAPIKey("PUBLIC"),
		PrivateKey: internal.NewAPIKey("PRIVATE"),
		Metadata:   cloneMetadata(req.Metadata),
		CreatedAt:  e.now(),
	}

	if hook := e.config.Events.BeforeRegister; hook != nil {
		if err := hook(ctx, u); err != nil {
			e.metricInc(MetricRegisterRejected)
			e.emitAudit(ctx, auditEventRegisterFailure, "", "", client.IP, err, map[string]string{"hook": "before_register"})
			return nil, err
		}
	}

	if err := e.users.Create(ctx, u); err != nil {
		return fail(e.internal(ctx, "register", err))
	}

	sess, err := e.issueSession(ctx, u, client)
	if err != nil {
		return fail(e.internal(ctx, "register", err))
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, u.ID, sess.ID, client.IP, nil, nil)
	e.notify(ctx, e.config.Events.Register, Event{
		Type:      EventRegister,
		UserID:    u.ID,
		Username:  u.Username,
		SessionID: sess.ID,
		IP:        client.IP,
	})

	return &SessionResult{Session: sess.ID, Expiration: sess.Expiration, Username: u.Username}, nil
}

// Login checks credentials and, for users with two-factor enabled, the TOTP
// code. An enrolled user who sends no code gets TwoFactorRequired and no
// session.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	client := clientFrom(ctx, req.Client)
	fail := func(userID string, err error) (*LoginResult, error) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, userID, "", client.IP, err, nil)
		return nil, err
	}

	username, err := normalizeUsername(req.Username)
	if err != nil {
		return fail("", err)
	}

	u, err := e.findUser(ctx, store.Filter{"username": username})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fail("", ErrAccountNotFound.withKind(KindUnauthorized))
		}
		return fail("", e.internal(ctx, "login", err))
	}

	ok, err := e.hasher.Verify(req.Password, u.Password)
	if err != nil && !errors.Is(err, password.ErrUnknownHash) {
		return fail(u.ID, e.internal(ctx, "login", err))
	}
	if err != nil {
		e.logger.WarnContext(ctx, "stored password hash has unknown format", "user_id", u.ID)
	}
	if !ok {
		return fail(u.ID, ErrPasswordMismatch)
	}

	if hook := e.config.Events.BeforeLogin; hook != nil {
		if err := hook(ctx, u); err != nil {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, u.ID, "", client.IP, err, map[string]string{"hook": "before_login"})
			return nil, err
		}
	}

	enrollment, err := e.HasTwoFactor(ctx, u.ID)
	if err != nil {
		return fail(u.ID, e.internal(ctx, "login", err))
	}
	if enrollment != nil {
		if req.Code == "" {
			e.metricInc(MetricTwoFactorRequired)
			e.emitAudit(ctx, auditEventTwoFactorRequired, u.ID, "", client.IP, nil, nil)
			return &LoginResult{TwoFactorRequired: true}, nil
		}
		if err := e.checkLoginCode(ctx, u, enrollment, req.Code, client); err != nil {
			return fail(u.ID, err)
		}
	}

	e.upgradeHash(ctx, u, req.Password)

	sess, err := e.issueSession(ctx, u, client)
	if err != nil {
		return fail(u.ID, e.internal(ctx, "login", err))
	}

	if err := e.users.Update(ctx, u.ID, store.Document{"last_login": sess.CreatedAt}); err != nil {
		e.logger.WarnContext(ctx, "stamping last_login failed", "user_id", u.ID, "error", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, u.ID, sess.ID, client.IP, nil, nil)
	e.notify(ctx, e.config.Events.Login, Event{
		Type:      EventLogin,
		UserID:    u.ID,
		Username:  u.Username,
		SessionID: sess.ID,
		IP:        client.IP,
	})

	return &LoginResult{SessionResult: SessionResult{
		Session:    sess.ID,
		Expiration: sess.Expiration,
		Username:   u.Username,
	}}, nil
}

// checkLoginCode validates a login TOTP code and marks its time step spent.
func (e *Engine) checkLoginCode(ctx context.Context, u *User, enrollment *TwoFactorEnrollment, code string, client Client) error {
	failed := func(err error) error {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, u.ID, "", client.IP, err, nil)
		e.notify(ctx, e.config.Events.FailedTwoFactor, Event{
			Type:     EventFailedTwoFactor,
			UserID:   u.ID,
			Username: u.Username,
			IP:       client.IP,
		})
		return err
	}

	if e.codeLocked(ctx, u.ID) {
		return failed(ErrTwoFactorLocked)
	}
	step, ok := e.totp.Verify(code, enrollment.Secret, e.now())
	if !ok {
		return failed(e.codeFailed(ctx, u.ID, ErrInvalidTwoFactorCode))
	}
	fresh, err := e.spendStep(ctx, enrollment, code, step)
	if err != nil {
		return e.internal(ctx, "login_two_factor", err)
	}
	if !fresh {
		return failed(e.codeFailed(ctx, u.ID, ErrInvalidTwoFactorCode))
	}
	e.codeAccepted(ctx, u.ID)
	return nil
}

// upgradeHash re-hashes pw when the stored hash is outdated. Failures are
// logged only.
func (e *Engine) upgradeHash(ctx context.Context, u *User, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	stale, err := e.hasher.NeedsUpgrade(u.Password)
	if err != nil || !stale {
		return
	}
	h, err := e.hasher.Hash(pw)
	if err != nil {
		e.logger.WarnContext(ctx, "password upgrade hash failed", "user_id", u.ID, "error", err)
		return
	}
	if err := e.users.Update(ctx, u.ID, store.Document{"password": h}); err != nil {
		e.logger.WarnContext(ctx, "password upgrade write failed", "user_id", u.ID, "error", err)
		return
	}
	u.Password = h
	e.metricInc(MetricPasswordUpgraded)
	e.emitAudit(ctx, auditEventPasswordUpgraded, u.ID, "", "", nil, nil)
}

func cloneMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

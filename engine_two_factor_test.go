package saasAuth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/saasAuth/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// otherCode returns a well-formed code that differs from code.
func otherCode(code string) string {
	last := code[len(code)-1]
	if last == '9' {
		return code[:len(code)-1] + "0"
	}
	return code[:len(code)-1] + string(last+1)
}

func enrollTwoFactor(t *testing.T, env *testEnv, username string) (*User, string) {
	t.Helper()
	ctx := context.Background()
	u := env.stored(t, username)

	setup, err := env.engine.BeginTwoFactor(ctx, u, Client{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("BeginTwoFactor failed: %v", err)
	}
	code, err := env.engine.totp.Code(setup.Secret, env.clock.Now())
	if err != nil {
		t.Fatalf("Code failed: %v", err)
	}
	if err := env.engine.ConfirmTwoFactor(ctx, u, setup.AttemptID, code); err != nil {
		t.Fatalf("ConfirmTwoFactor failed: %v", err)
	}
	return u, setup.Secret
}

func TestBeginTwoFactorSetup(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.register(t, "a@example.com", "password123")
	u := env.stored(t, "a@example.com")

	setup, err := env.engine.BeginTwoFactor(context.Background(), u, Client{})
	if err != nil {
		t.Fatalf("BeginTwoFactor failed: %v", err)
	}
	if !strings.HasPrefix(setup.URI, "otpauth://totp/") || !strings.Contains(setup.URI, "issuer=Acme") {
		t.Fatalf("unexpected otpauth uri: %s", setup.URI)
	}
	if !strings.HasPrefix(setup.QRCode, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %.40s", setup.QRCode)
	}
	if setup.Secret == "" || setup.AttemptID == "" {
		t.Fatalf("expected secret and attempt id, got %+v", setup)
	}
	if want := env.clock.Now().Add(10 * time.Minute); !setup.ExpiresAt.Equal(want) {
		t.Fatalf("expected attempt to expire at %v, got %v", want, setup.ExpiresAt)
	}
}

func TestConfirmTwoFactorRejections(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()
	env.register(t, "a@example.com", "password123")
	env.register(t, "b@example.com", "password123")
	a := env.stored(t, "a@example.com")
	b := env.stored(t, "b@example.com")

	setup, err := env.engine.BeginTwoFactor(ctx, a, Client{})
	if err != nil {
		t.Fatalf("BeginTwoFactor failed: %v", err)
	}
	code, _ := env.engine.totp.Code(setup.Secret, env.clock.Now())

	expectErr(t, env.engine.ConfirmTwoFactor(ctx, b, setup.AttemptID, code), ErrInvalidAttempt)
	expectErr(t, env.engine.ConfirmTwoFactor(ctx, a, "missing", code), ErrInvalidAttempt)
	expectErr(t, env.engine.ConfirmTwoFactor(ctx, a, setup.AttemptID, otherCode(code)), ErrInvalidCode)

	if en, _ := env.engine.HasTwoFactor(ctx, a.ID); en != nil {
		t.Fatal("expected no enrollment after failed confirmations")
	}

	env.clock.Advance(10 * time.Minute)
	code, _ = env.engine.totp.Code(setup.Secret, env.clock.Now())
	expectErr(t, env.engine.ConfirmTwoFactor(ctx, a, setup.AttemptID, code), ErrInvalidAttempt)
}

func TestLoginWithTwoFactor(t *testing.T) {
	var failed []Event
	cfg := testConfig()
	cfg.Events.FailedTwoFactor = func(_ context.Context, ev Event) { failed = append(failed, ev) }
	env := newTestEngine(t, cfg)
	ctx := context.Background()
	env.register(t, "a@example.com", "password123")
	_, secret := enrollTwoFactor(t, env, "a@example.com")

	res, err := env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.TwoFactorRequired || res.Session != "" {
		t.Fatalf("expected two-factor challenge without session, got %+v", res)
	}

	env.clock.Advance(30 * time.Second)
	code, _ := env.engine.totp.Code(secret, env.clock.Now())

	_, err = env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: otherCode(code)})
	expectErr(t, err, ErrInvalidTwoFactorCode)

	res, err = env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: code})
	if err != nil {
		t.Fatalf("Login with code failed: %v", err)
	}
	if res.Session == "" {
		t.Fatal("expected session after valid code")
	}

	_, err = env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: code})
	expectErr(t, err, ErrInvalidTwoFactorCode)

	if len(failed) != 2 {
		t.Fatalf("expected two failed two-factor events, got %d", len(failed))
	}
}

func TestConfirmationCodeCannotLogIn(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()
	env.register(t, "a@example.com", "password123")
	u, secret := enrollTwoFactor(t, env, "a@example.com")

	en, err := env.engine.HasTwoFactor(ctx, u.ID)
	if err != nil || en == nil {
		t.Fatalf("expected enrollment, en=%v err=%v", en, err)
	}
	if want := env.clock.Now().Unix() / 30; en.LastStep != want {
		t.Fatalf("expected confirmation step %d recorded, got %d", want, en.LastStep)
	}

	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	_, err = env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: code})
	expectErr(t, err, ErrInvalidTwoFactorCode)
}

func TestSpentCodeSurvivesCacheLoss(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()
	env.register(t, "a@example.com", "password123")
	_, secret := enrollTwoFactor(t, env, "a@example.com")

	env.clock.Advance(30 * time.Second)
	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	login := LoginRequest{Username: "a@example.com", Password: "password123", Code: code}
	if _, err := env.engine.Login(ctx, login); err != nil {
		t.Fatalf("Login with code failed: %v", err)
	}

	// a second instance over the same database, with its own empty cache
	second, err := New().
		WithConfig(testConfig()).
		WithDatabase(env.db).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(second.Close)

	_, err = second.Login(ctx, login)
	expectErr(t, err, ErrInvalidTwoFactorCode)

	prev, _ := second.totp.Code(secret, env.clock.Now().Add(-30*time.Second))
	_, err = second.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: prev})
	expectErr(t, err, ErrInvalidTwoFactorCode)

	env.clock.Advance(30 * time.Second)
	next, _ := second.totp.Code(secret, env.clock.Now())
	if _, err := second.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: next}); err != nil {
		t.Fatalf("expected a newer code to log in, got %v", err)
	}
}

func TestWrongCodesLockTwoFactor(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.TwoFactor.MaxAttempts = 3
	env := newTestEngine(t, cfg, func(b *Builder) { b.WithCache(cache.NewRedis(rdb, "t")) })
	ctx := context.Background()
	env.register(t, "a@example.com", "password123")
	u, secret := enrollTwoFactor(t, env, "a@example.com")

	env.clock.Advance(30 * time.Second)
	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	wrong := otherCode(code)

	expectErr(t, env.engine.DisableTwoFactor(ctx, u, wrong), ErrInvalidCode)
	_, err := env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: wrong})
	expectErr(t, err, ErrInvalidTwoFactorCode)
	expectErr(t, env.engine.DisableTwoFactor(ctx, u, wrong), ErrTwoFactorLocked)

	expectErr(t, env.engine.DisableTwoFactor(ctx, u, code), ErrTwoFactorLocked)
	_, err = env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123", Code: code})
	expectErr(t, err, ErrTwoFactorLocked)
	if en, _ := env.engine.HasTwoFactor(ctx, u.ID); en == nil {
		t.Fatal("expected enrollment to survive a locked disable")
	}

	mr.FastForward(time.Minute + time.Second)
	env.clock.Advance(time.Minute)
	code, _ = env.engine.totp.Code(secret, env.clock.Now())
	if err := env.engine.DisableTwoFactor(ctx, u, code); err != nil {
		t.Fatalf("expected disable after cooldown, got %v", err)
	}
}

func TestReEnrollReplacesSecret(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.register(t, "a@example.com", "password123")

	_, first := enrollTwoFactor(t, env, "a@example.com")
	_, second := enrollTwoFactor(t, env, "a@example.com")
	if first == second {
		t.Fatal("expected a new secret")
	}

	all, err := env.engine.enrollments.Find(context.Background(), nil)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(all) != 1 || all[0].Secret != second {
		t.Fatalf("expected exactly the new enrollment, got %+v", all)
	}
}

func TestDisableTwoFactor(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()
	env.register(t, "a@example.com", "password123")
	u, secret := enrollTwoFactor(t, env, "a@example.com")

	code, _ := env.engine.totp.Code(secret, env.clock.Now())
	expectErr(t, env.engine.DisableTwoFactor(ctx, u, code), ErrInvalidCode)

	env.clock.Advance(30 * time.Second)
	code, _ = env.engine.totp.Code(secret, env.clock.Now())
	expectErr(t, env.engine.DisableTwoFactor(ctx, u, otherCode(code)), ErrInvalidCode)

	if err := env.engine.DisableTwoFactor(ctx, u, code); err != nil {
		t.Fatalf("DisableTwoFactor failed: %v", err)
	}
	if en, _ := env.engine.HasTwoFactor(ctx, u.ID); en != nil {
		t.Fatal("expected enrollment removed")
	}
	expectErr(t, env.engine.DisableTwoFactor(ctx, u, code), ErrNotEnrolled)

	res, err := env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "password123"})
	if err != nil || res.TwoFactorRequired {
		t.Fatalf("expected plain login after disable, res=%+v err=%v", res, err)
	}
}

func TestTOTPRFCVectors(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Digits: 8, Period: 30 * time.Second, Skew: 0, QRCodeSize: 64}, "Acme")
	// base32 of "12345678901234567890"
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}
	for _, tc := range cases {
		step, ok := m.Verify(tc.code, secret, time.Unix(tc.ts, 0))
		if !ok || step != tc.ts/30 {
			t.Fatalf("vector failed at t=%d: step=%d ok=%v", tc.ts, step, ok)
		}
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Digits: 6, Period: 30 * time.Second, Skew: 1, QRCodeSize: 64}, "Acme")
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	now := time.Unix(1234567890, 0)

	prev, _ := m.Code(secret, now.Add(-30*time.Second))
	step, ok := m.Verify(prev, secret, now)
	if !ok || step != now.Unix()/30-1 {
		t.Fatalf("expected previous step to be accepted, step=%d ok=%v", step, ok)
	}
	old, _ := m.Code(secret, now.Add(-90*time.Second))
	if _, ok := m.Verify(old, secret, now); old != prev && ok {
		t.Fatal("expected code outside the skew window to be rejected")
	}
	if _, ok := m.Verify("12345678", secret, now); ok {
		t.Fatal("expected wrong-length code to be rejected")
	}
	if got := m.replayWindow(); got != 2*time.Minute {
		t.Fatalf("expected 2m replay window, got %v", got)
	}
}

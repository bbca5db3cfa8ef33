package saasAuth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/saasAuth/mail"
	"github.com/MrEthical07/saasAuth/store"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	db     *store.Memory
	mailer *mail.Recorder
	clock  *testClock
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Business = BusinessConfig{
		Name:        "Acme",
		Email:       "noreply@acme.test",
		Host:        "https://acme.test/",
		RedirectURL: "/welcome",
	}
	return cfg
}

func newTestEngine(t testing.TB, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		db:     store.NewMemory(),
		mailer: &mail.Recorder{},
		clock:  &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	b := New().
		WithConfig(cfg).
		WithDatabase(env.db).
		WithMailer(env.mailer).
		WithClock(env.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) register(t testing.TB, username, pw string) *SessionResult {
	t.Helper()
	res, err := env.engine.Register(context.Background(), RegisterRequest{Username: username, Password: pw})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return res
}

// stored returns the raw user record, password hash included.
func (env *testEnv) stored(t testing.TB, username string) *User {
	t.Helper()
	u, err := env.engine.users.FindOne(context.Background(), store.Filter{"username": username})
	if err != nil {
		t.Fatalf("user %s not found: %v", username, err)
	}
	return u
}

var tokenInLink = regexp.MustCompile(`(?:token=|/user/validate/email/)([A-Za-z0-9_-]+)`)

// lastLinkToken extracts the token from the most recent mail.
func (env *testEnv) lastLinkToken(t testing.TB) string {
	t.Helper()
	msg, ok := env.mailer.Last()
	if !ok {
		t.Fatal("expected a mail to be sent")
	}
	m := tokenInLink.FindStringSubmatch(msg.Text)
	if m == nil {
		t.Fatalf("no token link in mail text: %q", msg.Text)
	}
	return m[1]
}

func expectErr(t testing.TB, err error, want *Error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want.Code)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}

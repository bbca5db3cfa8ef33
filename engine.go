package saasAuth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/saasAuth/cache"
	"github.com/MrEthical07/saasAuth/internal/abuse"
	"github.com/MrEthical07/saasAuth/internal/rate"
	"github.com/MrEthical07/saasAuth/internal/stores"
	"github.com/MrEthical07/saasAuth/internal/usage"
	"github.com/MrEthical07/saasAuth/mail"
	"github.com/MrEthical07/saasAuth/password"
	"github.com/MrEthical07/saasAuth/session"
	"github.com/MrEthical07/saasAuth/store"
)

// Engine runs the credential and session lifecycle for one tenant namespace.
// It is immutable after Build and safe for concurrent use.
type Engine struct {
	config   Config
	location *time.Location
	clock    func() time.Time
	logger   *slog.Logger

	db     store.Database
	cache  cache.Cache
	mailer mail.Mailer

	users       *store.Collection[User]
	enrollments *store.Collection[TwoFactorEnrollment]
	sessions    *session.Manager
	tokens      *stores.Tokens
	twoFactor   *stores.TwoFactor
	abuse       *abuse.Heuristic
	usage       *usage.Tracker
	failures    *rate.Failures

	hasher  password.Hasher
	totp    *totpManager
	audit   *auditDispatcher
	metrics *Metrics

	// mu guards closed; TrackUsage only joins background while open.
	mu         sync.Mutex
	closed     bool
	background sync.WaitGroup
}

// Close waits for background usage writes, flushes usage totals and stops
// the audit dispatcher. Usage tracked after Close is dropped.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.background.Wait()
	if e.usage != nil {
		if err := e.usage.Flush(context.Background()); err != nil {
			e.logger.Warn("usage flush on close failed", "error", err)
		}
	}
	e.audit.Close()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// now is the engine clock in the configured timezone.
func (e *Engine) now() time.Time {
	return e.clock().In(e.location)
}

// internal logs an unexpected failure and hides it from the caller.
func (e *Engine) internal(ctx context.Context, op string, err error) error {
	var ee *Error
	if errors.As(err, &ee) {
		return ee
	}
	e.logger.ErrorContext(ctx, "operation failed", "op", op, "error", err, "request_id", requestIDFromContext(ctx))
	return ErrInternal
}

func (e *Engine) hash(pw string) (string, error) {
	if len(pw) < e.config.Password.MinLength {
		return "", ErrPasswordPolicy
	}
	h, err := e.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) || errors.Is(err, password.ErrEmptyPassword) {
			return "", ErrPasswordPolicy
		}
		return "", err
	}
	return h, nil
}

func (e *Engine) findUser(ctx context.Context, filter store.Filter) (*User, error) {
	u, err := e.users.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return u, nil
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, sessionID, ip string, err error, meta map[string]string) {
	if e.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		Namespace: e.config.Namespace,
		UserID:    userID,
		SessionID: sessionID,
		IP:        ip,
		RequestID: requestIDFromContext(ctx),
		Success:   err == nil,
		Metadata:  meta,
	}
	if err != nil {
		ev.Reason = AsError(err).Code
	}
	e.audit.Emit(ctx, ev)
}

func (e *Engine) notify(ctx context.Context, hook func(context.Context, Event), ev Event) {
	if hook == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	hook(ctx, ev)
}

package saasAuth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	return &captureSink{events: make(chan AuditEvent, buffer)}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	env := newTestEngine(t, testConfig(), func(b *Builder) { b.WithAuditSink(sink) })

	_, _ = env.engine.Login(context.Background(), LoginRequest{Username: "a@example.com", Password: "password123"})
	env.engine.Close()

	if n := sink.count.Load(); n != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", n)
	}
}

func TestAuditEventsCarryContextWithoutSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := newCaptureSink(32)
	env := newTestEngine(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithRequestID(WithClientIP(context.Background(), "198.51.100.33"), "req-1")
	reg := env.register(t, "a@example.com", "password123")
	_, _ = env.engine.Login(ctx, LoginRequest{Username: "a@example.com", Password: "super-secret-password"})
	env.engine.Close()

	var events []AuditEvent
	for len(sink.events) > 0 {
		events = append(events, <-sink.events)
	}
	if len(events) != 2 {
		t.Fatalf("expected register and login events, got %d", len(events))
	}

	failure := events[1]
	if failure.EventType != auditEventLoginFailure || failure.Success {
		t.Fatalf("expected failed login event, got %+v", failure)
	}
	if failure.IP != "198.51.100.33" || failure.RequestID != "req-1" || failure.Namespace != "app" {
		t.Fatalf("expected request context on event, got %+v", failure)
	}
	if failure.Reason != "password_mismatch" {
		t.Fatalf("expected reason code, got %q", failure.Reason)
	}

	for _, ev := range events {
		for _, needle := range []string{"super-secret-password", "password123"} {
			if strings.Contains(ev.Reason, needle) {
				t.Fatalf("password leaked in reason: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("password leaked in metadata: %q", needle)
				}
			}
		}
	}
	if events[0].SessionID != reg.Session {
		t.Fatalf("expected register event to name the session, got %q", events[0].SessionID)
	}
}

func TestAuditBufferFullDropIfFullDoesNotBlock(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), AuditEvent{EventType: "e1"})
	d.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullBlocksUntilSpace(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: false}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), AuditEvent{EventType: "e1"})
	d.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditDispatcherCloseIdempotent(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, &countingSink{}, nil)

	d.Emit(context.Background(), AuditEvent{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), AuditEvent{EventType: "e2"})

	var nilDispatcher *auditDispatcher
	nilDispatcher.Emit(context.Background(), AuditEvent{})
	nilDispatcher.Close()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	})

	out := buf.String()
	if !strings.Contains(out, "login_success") || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("unexpected JSON line: %s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected newline-terminated record")
	}
}

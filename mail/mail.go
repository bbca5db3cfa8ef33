// Package mail defines the outbound mail contract used for password reset and
// email verification links, plus SMTP, recording and unconfigured senders.
//
// A Mailer never panics and never returns a Go error: delivery problems come
// back as a Result with Error set so callers can surface the message.
package mail

import (
	"context"
	"sync"
)

// Message is one outbound email. From may be empty; senders then use their
// configured address.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Result reports the outcome of a send.
type Result struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) Result
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, msg Message) Result

func (f MailerFunc) Send(ctx context.Context, msg Message) Result {
	return f(ctx, msg)
}

// NotConfiguredMessage is returned by Unconfigured.
const NotConfiguredMessage = "Mail service is not configured."

// Unconfigured is the mailer used when no transport is set up.
type Unconfigured struct{}

func (Unconfigured) Send(context.Context, Message) Result {
	return Result{Error: true, Message: NotConfiguredMessage}
}

// Recorder keeps every message in memory and reports success. Used by the
// development server and tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) Result {
	r.mu.Lock()
	r.sent = append(r.sent, msg)
	r.mu.Unlock()
	return Result{Message: "Email sent."}
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last returns the most recent message, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}

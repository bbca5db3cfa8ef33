package saasAuth

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/saasAuth/internal"
	"github.com/MrEthical07/saasAuth/internal/stores"
	"github.com/MrEthical07/saasAuth/mail"
)

// issueToken replaces the user's unconsumed tokens of typ with a fresh one.
func (e *Engine) issueToken(ctx context.Context, userID string, typ stores.TokenType, ttl time.Duration) (*stores.Token, error) {
	id, err := internal.NewOpaqueID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	tok := &stores.Token{
		ID:         id,
		UserID:     userID,
		Type:       typ,
		CreatedAt:  now,
		Expiration: now.Add(ttl),
	}
	if err := e.tokens.Issue(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// link joins the business host and path.
func (e *Engine) link(path string) string {
	return strings.TrimRight(e.config.Business.Host, "/") + path
}

func (e *Engine) linkData(path string) mail.LinkData {
	return mail.LinkData{Business: e.config.Business.Name, Link: e.link(path)}
}

// deliver sends msg and maps a failed Result to ErrMailerUnavailable carrying
// the mailer's message.
func (e *Engine) deliver(ctx context.Context, msg mail.Message) (mail.Result, error) {
	if msg.From == "" {
		msg.From = e.config.Business.Email
	}
	res := e.mailer.Send(ctx, msg)
	if res.Error {
		e.metricInc(MetricMailFailure)
		e.logger.WarnContext(ctx, "mail delivery failed", "subject", msg.Subject, "reason", res.Message)
		return res, ErrMailerUnavailable.withMessage(res.Message)
	}
	return res, nil
}

package stores

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/saasAuth/store"
)

// TokenType distinguishes the token lifecycles sharing one collection.
type TokenType string

const (
	TokenPasswordReset     TokenType = "password_reset"
	TokenEmailVerification TokenType = "email_verification"
)

var (
	// ErrTokenInvalid covers unknown, used, expired and wrong-type tokens alike.
	ErrTokenInvalid = errors.New("token invalid or expired")
)

// Token is a single-use bearer token. Used is nil until consumed.
type Token struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Type       TokenType  `json:"type"`
	CreatedAt  time.Time  `json:"created_at"`
	Expiration time.Time  `json:"expiration"`
	Used       *time.Time `json:"used"`
}

// Tokens persists reset and verification tokens.
type Tokens struct {
	tokens *store.Collection[Token]
}

func NewTokens(db store.Database, collection string) *Tokens {
	return &Tokens{tokens: store.NewCollection[Token](db, collection)}
}

// Issue stores tok after removing the user's other unconsumed tokens of the
// same type.
func (s *Tokens) Issue(ctx context.Context, tok *Token) error {
	if _, err := s.RemoveUnconsumed(ctx, tok.UserID, tok.Type); err != nil {
		return err
	}
	return s.tokens.Create(ctx, tok)
}

// RemoveUnconsumed deletes every unused token of typ for userID.
func (s *Tokens) RemoveUnconsumed(ctx context.Context, userID string, typ TokenType) (int, error) {
	live, err := s.tokens.Find(ctx, store.Filter{"userId": userID, "type": typ, "used": nil})
	if err != nil {
		return 0, err
	}
	for _, t := range live {
		if err := s.tokens.Remove(ctx, t.ID); err != nil {
			return 0, err
		}
	}
	return len(live), nil
}

// Valid returns the token when it exists, has type typ, is unused and now is
// before its expiration.
func (s *Tokens) Valid(ctx context.Context, id string, typ TokenType, now time.Time) (*Token, error) {
	if id == "" {
		return nil, ErrTokenInvalid
	}
	tok, err := s.tokens.FindOne(ctx, store.Filter{"id": id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if tok.Type != typ || tok.Used != nil || !now.Before(tok.Expiration) {
		return nil, ErrTokenInvalid
	}
	return tok, nil
}

// Consume validates the token and stamps it used.
func (s *Tokens) Consume(ctx context.Context, id string, typ TokenType, now time.Time) (*Token, error) {
	tok, err := s.Valid(ctx, id, typ, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Update(ctx, tok.ID, store.Document{"used": now}); err != nil {
		return nil, err
	}
	tok.Used = &now
	return tok, nil
}

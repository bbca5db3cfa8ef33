package saasAuth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/saasAuth/store"
)

// updatableFields are the user keys Update accepts.
var updatableFields = map[string]bool{
	"username":    true,
	"password":    true,
	"namespace":   true,
	"public_key":  true,
	"private_key": true,
	"metadata":    true,
}

// GetUser returns the user without the password hash.
func (e *Engine) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := e.findUser(ctx, store.Filter{"id": userID})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.internal(ctx, "get_user", err)
	}
	return u.Sanitized(), nil
}

// Update changes one field of user.
func (e *Engine) Update(ctx context.Context, user *User, field string, value any) (*User, error) {
	return e.UpdateFields(ctx, user, map[string]any{field: value})
}

// UpdateFields changes several fields at once. Every key is validated before
// anything is written; an unsupported key rejects the whole update.
func (e *Engine) UpdateFields(ctx context.Context, user *User, fields map[string]any) (*User, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	ip := clientIPFromContext(ctx)
	fail := func(err error) (*User, error) {
		e.emitAudit(ctx, auditEventUserUpdate, user.ID, "", ip, err, nil)
		return nil, err
	}
	if len(fields) == 0 {
		return fail(ErrMissingField)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !updatableFields[k] {
			return fail(unsupportedField(k))
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patch := store.Document{}
	for _, k := range keys {
		if err := e.stageField(ctx, user, k, fields[k], patch); err != nil {
			return fail(err)
		}
	}
	patch["updated_at"] = e.now()

	if err := e.users.Update(ctx, user.ID, patch); err != nil {
		return fail(e.internal(ctx, "update_user", err))
	}
	updated, err := e.findUser(ctx, store.Filter{"id": user.ID})
	if err != nil {
		return fail(e.internal(ctx, "update_user", err))
	}

	e.metricInc(MetricUserUpdated)
	e.emitAudit(ctx, auditEventUserUpdate, user.ID, "", ip, nil, map[string]string{"fields": fmt.Sprint(keys)})
	e.notify(ctx, e.config.Events.Update, Event{
		Type:     EventUpdate,
		UserID:   updated.ID,
		Username: updated.Username,
		IP:       ip,
		Fields:   keys,
	})
	return updated.Sanitized(), nil
}

// stageField validates one key and writes its stored form into patch.
func (e *Engine) stageField(ctx context.Context, user *User, key string, value any, patch store.Document) error {
	if key == "metadata" {
		m, ok := value.(map[string]any)
		if !ok {
			return ErrMissingField.withMessage("'metadata' must be an object.")
		}
		merged := cloneMetadata(user.Metadata)
		if merged == nil {
			merged = make(map[string]any, len(m))
		}
		for k, v := range m {
			merged[k] = v
		}
		patch["metadata"] = merged
		return nil
	}

	s, ok := value.(string)
	if !ok || s == "" {
		return ErrMissingField.withMessage(fmt.Sprintf("'%s' must be a non-empty string.", key))
	}

	switch key {
	case "username":
		username, err := normalizeUsername(s)
		if err != nil {
			return err
		}
		if username == user.Username {
			return nil
		}
		if err := e.ensureUnique(ctx, user.ID, "username", username, ErrUsernameTaken); err != nil {
			return err
		}
		patch["username"] = username
		if e.config.ResetVerificationOnUsernameChange {
			patch["verified_email"] = false
		}
	case "password":
		h, err := e.hash(s)
		if err != nil {
			if errors.Is(err, ErrPasswordPolicy) {
				return ErrPasswordPolicy
			}
			return e.internal(ctx, "update_user", err)
		}
		patch["password"] = h
	case "public_key", "private_key":
		if err := e.ensureUnique(ctx, user.ID, key, s, ErrCredentialTaken); err != nil {
			return err
		}
		patch[key] = s
	case "namespace":
		patch["namespace"] = s
	}
	return nil
}

// ensureUnique fails with taken when another user already holds value in field.
func (e *Engine) ensureUnique(ctx context.Context, userID, field, value string, taken *Error) error {
	other, err := e.findUser(ctx, store.Filter{field: value})
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil
	case err != nil:
		return e.internal(ctx, "update_user", err)
	case other.ID != userID:
		return taken
	}
	return nil
}

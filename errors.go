package saasAuth

import (
	"errors"
	"net/http"
)

// Kind classifies an Error for the routing layer.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindUnauthorized
	KindConflict
	KindUnsupported
	KindServiceUnavailable
	KindRateLimited
)

var kindNames = [...]string{
	KindInternal:           "internal",
	KindInvalidInput:       "invalid_input",
	KindNotFound:           "not_found",
	KindUnauthorized:       "unauthorized",
	KindConflict:           "conflict",
	KindUnsupported:        "unsupported",
	KindServiceUnavailable: "service_unavailable",
	KindRateLimited:        "rate_limited",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Status is the HTTP status a router should answer with.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput, KindUnsupported:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured failure every engine operation returns. Two Errors
// match under errors.Is when their Codes are equal, so a copy carrying a
// different Kind or Message still matches its sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) withKind(k Kind) *Error {
	c := *e
	c.Kind = k
	return &c
}

func (e *Error) withMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidUsername = newError(KindInvalidInput, "invalid_username", "Username must be a valid email address.")
	ErrPasswordPolicy  = newError(KindInvalidInput, "password_policy", "Password does not meet the minimum requirements.")
	ErrMissingField    = newError(KindInvalidInput, "missing_field", "A required field is missing.")

	ErrAccountExists   = newError(KindConflict, "account_exists", "Account already exists.")
	ErrUsernameTaken   = newError(KindConflict, "username_taken", "Username is already in use.")
	ErrCredentialTaken = newError(KindConflict, "credential_taken", "Key is already in use.")

	ErrAccountNotFound       = newError(KindNotFound, "account_not_found", "Account not found.")
	ErrInvalidOrExpiredToken = newError(KindNotFound, "invalid_or_expired_token", "Token is invalid or has expired.")
	ErrInvalidAttempt        = newError(KindNotFound, "invalid_attempt", "Two-factor setup attempt not found or expired.")
	ErrNotEnrolled           = newError(KindNotFound, "not_enrolled", "Two-factor authentication is not enabled.")

	ErrPasswordMismatch     = newError(KindUnauthorized, "password_mismatch", "The password provided does not match.")
	ErrInvalidTwoFactorCode = newError(KindUnauthorized, "invalid_two_factor_code", "Two-factor code is invalid.")
	ErrInvalidCode          = newError(KindUnauthorized, "invalid_code", "Code is invalid.")
	ErrRegistrationDisabled = newError(KindUnauthorized, "registration_disabled", "Registration is not allowed.")
	ErrUnauthenticated      = newError(KindUnauthorized, "unauthenticated", "Authentication required.")
	ErrSessionRequired      = newError(KindUnauthorized, "session_required", "A session is required for this request.")
	ErrSessionInvalid       = newError(KindUnauthorized, "session_invalid", "Session is invalid or has expired.")
	ErrSessionIssueFailed   = newError(KindUnauthorized, "session_issue_failed", "Session could not be issued. Please log in again.")
	ErrUnsupportedField     = newError(KindUnsupported, "unsupported_field", "Key is not supported. Store this value in metadata instead.")
	ErrMailerUnavailable    = newError(KindServiceUnavailable, "mailer_unavailable", "Mail service is not available.")
	ErrInternal             = newError(KindInternal, "internal", "Something went wrong. Please try again later.")

	ErrTwoFactorLocked = newError(KindRateLimited, "two_factor_locked", "Too many invalid codes. Try again later.")
)

// unsupportedField names the rejected key in the message.
func unsupportedField(key string) *Error {
	return ErrUnsupportedField.withMessage("'" + key + "' key is not supported. Store this value in metadata instead.")
}

// AsError extracts the engine Error from err. Anything else is reported as
// ErrInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}

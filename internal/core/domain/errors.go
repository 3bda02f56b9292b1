package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure that carries its HTTP status semantics. It is the only
// error shape that crosses the process boundary: the router serializes it into
// an ErrorEnvelope and the caller rebuilds it unchanged.
type Error struct {
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code and message so that sentinels still compare equal after a
// round trip through the broker.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Envelope returns the wire form of e.
func (e *Error) Envelope() ErrorEnvelope {
	return ErrorEnvelope{StatusCode: e.Code, Message: e.Message}
}

// ErrorEnvelope is the {statusCode, message} pair sent on the wire.
type ErrorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Err rebuilds the typed error. A missing status is treated as an internal error.
func (env ErrorEnvelope) Err() *Error {
	code := env.StatusCode
	if code == 0 {
		code = http.StatusInternalServerError
	}
	return &Error{Code: code, Message: env.Message}
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func BadRequest(message string) *Error   { return NewError(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return NewError(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return NewError(http.StatusForbidden, message) }
func NotFound(message string) *Error     { return NewError(http.StatusNotFound, message) }
func Conflict(message string) *Error     { return NewError(http.StatusConflict, message) }

// Internal wraps an unexpected failure. The cause is kept for logging but
// never serialized.
func Internal(cause error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: "Internal server error", cause: cause}
}

var (
	ErrInvalidCredentials  = Unauthorized("Invalid email and password")
	ErrInvalidRefreshToken = Unauthorized("Invalid refresh token")
	ErrInvalidAccessToken  = Unauthorized("Invalid or expired token")
	ErrUserExists          = Conflict("Email already exists")
	ErrUserNotFound        = NotFound("User not found")
	ErrForbidden           = Forbidden("Unauthorized")
	ErrAccountDisabled     = Forbidden("Account is disabled")
	ErrRoleImmutable       = Forbidden("Role cannot be updated")
	ErrEmailRequired       = BadRequest("Email is required")
	ErrPasswordRequired    = BadRequest("Password is required")
	ErrPasswordTooShort    = BadRequest(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	ErrEmailImmutable      = BadRequest("Email cannot be updated")
	ErrInternal            = Internal(nil)
)

// StatusOf returns the status code carried by err, or 500 for untyped errors.
func StatusOf(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return http.StatusInternalServerError
}

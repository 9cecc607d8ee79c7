package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Recovery flow errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidToken      = errors.New("invalid or expired reset token")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrAccountInactive   = errors.New("account is not active")

	// Attempt store errors
	ErrStoreUnavailable = errors.New("attempt store unavailable")
	ErrCorruptRecord    = errors.New("corrupt attempt record")
)

package errors

import (
	"errors"
	"fmt"
)

// Common error types for the admin console
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrNoRefreshToken   = errors.New("no refresh token")
	ErrRefreshFailed    = errors.New("token refresh failed")

	// Backend errors
	ErrUnrecognizedEnvelope = errors.New("unrecognized response envelope")
	ErrEmptyTokens          = errors.New("backend returned empty tokens")

	// Menu errors
	ErrInvalidNavTree  = errors.New("invalid navigation tree")
	ErrUnknownParent   = errors.New("unknown parent route")
	ErrUnknownFallback = errors.New("fallback view is not registered")

	// Storage errors
	ErrInvalidStorageKey = errors.New("invalid storage key")
	ErrCorruptStore      = errors.New("corrupt store")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

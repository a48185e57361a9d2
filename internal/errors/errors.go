package errors

import (
	"errors"
	"fmt"
)

// Common error types for the sign-in application
var (
	// Browsing session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidCSRF     = errors.New("invalid csrf token")

	// Sign-in window errors
	ErrFlowNotFound  = errors.New("sign-in flow not found")
	ErrFlowCompleted = errors.New("sign-in flow already completed")
	ErrInvalidNonce  = errors.New("invalid nonce")
	ErrNoIDToken     = errors.New("no id token in response")

	// Token cache errors
	ErrCacheMiss = errors.New("cache miss")

	// Profile errors
	ErrIncompleteProfile = errors.New("profile has no display name")

	// Sealing errors
	ErrSealedValueInvalid = errors.New("sealed value invalid")
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

package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token service
var (
	// Request errors
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownRealm     = errors.New("unknown realm")
	ErrInvalidGrantType = errors.New("invalid grant type")
	ErrInvalidScope     = errors.New("invalid scope")

	// ErrInvalidCredentials covers both an unknown principal and a wrong secret
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Collaborator errors
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")

	// Signing errors
	ErrKeyUnavailable    = errors.New("signing key unavailable")
	ErrClaimConstruction = errors.New("claim construction failed")
	ErrInvalidToken      = errors.New("invalid token")

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

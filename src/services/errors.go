package services

import "errors"

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

var (
	// ErrKeyNotFound indicates no admin key matches the presented value
	ErrKeyNotFound = errors.New("admin key not found")

	// ErrKeyRevoked indicates the presented key was revoked by an operator
	ErrKeyRevoked = errors.New("admin key revoked")

	// ErrKeyExpired indicates the presented key passed its expiry instant
	ErrKeyExpired = errors.New("admin key expired")

	// ErrQuotaExhausted indicates the key has no remaining creation quota
	ErrQuotaExhausted = errors.New("admin key quota exhausted")

	// ErrDuplicateEmail indicates the email is already in use
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrInvalidCredentials indicates operator authentication failed
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a missing or malformed payload field. It is
// terminal for the given input and distinct from the unauthorized class.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Field + " " + e.Reason
}

// IsValidationError reports whether err is a payload validation failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package repositories

import "errors"

// Sentinel errors returned by repository implementations.
// Services map these onto their own taxonomy; callers should match
// with errors.Is rather than string comparison.
var (
	// ErrKeyNotFound indicates no admin key matches the lookup
	ErrKeyNotFound = errors.New("admin key not found")

	// ErrUserNotFound indicates the user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrAdminNotFound indicates the operator account does not exist
	ErrAdminNotFound = errors.New("admin user not found")

	// ErrDuplicateEmail indicates the email is already taken
	ErrDuplicateEmail = errors.New("email already in use")
)

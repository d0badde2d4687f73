package models

// KeyStatus represents the lifecycle status of an admin key
type KeyStatus string

const (
	// KeyStatusActive indicates the key may authorize user creation
	KeyStatusActive KeyStatus = "active"
	// KeyStatusRevoked indicates an operator disabled the key
	KeyStatusRevoked KeyStatus = "revoked"
	// KeyStatusExpired indicates the key passed its expiry instant
	KeyStatusExpired KeyStatus = "expired"
)

// UserStatus represents the status of an externally created user
type UserStatus string

const (
	// UserStatusActive indicates a usable account
	UserStatusActive UserStatus = "active"
	// UserStatusInactive indicates a disabled account
	UserStatusInactive UserStatus = "inactive"
)

// Defaults applied when the creation payload omits optional fields
const (
	DefaultUserRole   = "user"
	DefaultUserStatus = UserStatusActive
)

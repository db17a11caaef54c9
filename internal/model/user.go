package model

import "time"

// Roles stored in users.role.  ADMIN is scoped to a single school;
// SUPER_ADMIN may act on any school.
const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// User is an application account.  Students and staff both live in the
// users table; the role plus the optional school link decide what they can
// do.  PushToken holds the device token notifications are addressed to.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	SchoolID     *uint64   // users.school_id (nullable)
	PushToken    string    // users.push_token
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models a row in refresh_tokens.  Only the SHA-256 hash of
// the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Package models - user.go defines the User model for backoffice accounts,
// including the failed-login counter and lockout fields that the login service
// updates atomically.
package models

import "time"

// User represents an account within an organization.
type User struct {
	ID                  string     `json:"id" db:"id"`
	OrgID               string     `json:"org_id" db:"org_id"`
	Email               string     `json:"email" db:"email"`
	Name                string     `json:"name" db:"name"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	Role                string     `json:"role" db:"role"` // admin | manager | agent | affiliate
	EmailVerifiedAt     *time.Time `json:"email_verified_at,omitempty" db:"email_verified_at"`
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" db:"locked_until"`
	Active              bool       `json:"active" db:"active"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// EmailVerified reports whether the account's email has been verified.
func (u *User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// LockedAt reports whether the account is locked at the given instant.
func (u *User) LockedAt(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

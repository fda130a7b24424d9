// action_token.go defines single-use tokens for email verification and
// password reset. Only the SHA-256 hash of the raw token is stored; consumed_at
// flips exactly once via a conditional UPDATE so concurrent redemptions have
// one winner.
package models

import "time"

// ActionToken is a single-use credential issued to a user.
type ActionToken struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Kind       string     `json:"kind" db:"kind"` // email_verification | password_reset
	TokenHash  string     `json:"-" db:"token_hash"`
	Email      string     `json:"email" db:"email"` // email at issuance, detects email-change races
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

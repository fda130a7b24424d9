// affiliate.go defines covered persons. An affiliate may be linked to a user
// account (self-service access with "own" scope); national_id is stored
// AES-GCM encrypted and never appears in audit metadata.
package models

import "time"

// Affiliate is a person covered under a client's policies.
type Affiliate struct {
	ID                  string    `json:"id" db:"id"`
	OrgID               string    `json:"org_id" db:"org_id"`
	ClientID            string    `json:"client_id" db:"client_id"`
	UserID              *string   `json:"user_id,omitempty" db:"user_id"`
	FirstName           string    `json:"first_name" db:"first_name"`
	LastName            string    `json:"last_name" db:"last_name"`
	Email               *string   `json:"email,omitempty" db:"email"`
	NationalIDEncrypted []byte    `json:"-" db:"national_id_encrypted"`
	BirthDate           *string   `json:"birth_date,omitempty" db:"birth_date"` // YYYY-MM-DD
	Active              bool      `json:"active" db:"active"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// insurer.go defines insurance carriers.
package models

import "time"

// Insurer is a carrier that underwrites policies for the organization.
type Insurer struct {
	ID           string    `json:"id" db:"id"`
	OrgID        string    `json:"org_id" db:"org_id"`
	Name         string    `json:"name" db:"name"`
	Code         string    `json:"code" db:"code"` // unique per org
	ContactEmail *string   `json:"contact_email,omitempty" db:"contact_email"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

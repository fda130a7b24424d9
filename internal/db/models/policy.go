// policy.go defines the Policy resource. Status only changes through the
// lifecycle engine; policy_number and start_date become immutable once the
// policy leaves DRAFT.
package models

import "time"

// Policy is an insurance policy issued by an insurer for a client.
type Policy struct {
	ID           string     `json:"id" db:"id"`
	OrgID        string     `json:"org_id" db:"org_id"`
	ClientID     string     `json:"client_id" db:"client_id"`
	InsurerID    string     `json:"insurer_id" db:"insurer_id"`
	PolicyNumber string     `json:"policy_number" db:"policy_number"` // unique per org
	Status       string     `json:"status" db:"status"`
	StartDate    string     `json:"start_date" db:"start_date"` // YYYY-MM-DD
	EndDate      *string    `json:"end_date,omitempty" db:"end_date"`
	PremiumCents int64      `json:"premium_cents" db:"premium_cents"`
	Notes        *string    `json:"notes,omitempty" db:"notes"`
	CreatedByID  string     `json:"created_by_id" db:"created_by_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// claim.go defines the Claim resource filed by an affiliate under a policy.
package models

import "time"

// Claim is an insurance claim. Status only changes through the lifecycle
// engine; every transition appends a lifecycle history row and an audit row in
// the same transaction as the status update.
type Claim struct {
	ID           string    `json:"id" db:"id"`
	OrgID        string    `json:"org_id" db:"org_id"`
	PolicyID     string    `json:"policy_id" db:"policy_id"`
	AffiliateID  string    `json:"affiliate_id" db:"affiliate_id"`
	ClaimNumber  string    `json:"claim_number" db:"claim_number"` // unique per org
	Status       string    `json:"status" db:"status"`
	AmountCents  int64     `json:"amount_cents" db:"amount_cents"`
	Description  string    `json:"description" db:"description"`
	IncidentDate string    `json:"incident_date" db:"incident_date"` // YYYY-MM-DD
	CreatedByID  string    `json:"created_by_id" db:"created_by_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

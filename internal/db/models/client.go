// client.go defines corporate clients and agent-client memberships.
package models

import "time"

// Client is a corporate client of the organization. Policies and claims hang
// off clients through their affiliates.
type Client struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	Name      string    `json:"name" db:"name"` // unique per org
	TaxID     *string   `json:"tax_id,omitempty" db:"tax_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ClientMembership links an agent user to a client they may operate on.
// Scope resolution re-reads these rows on every request — membership changes
// take effect immediately, never from a cache.
type ClientMembership struct {
	UserID    string    `json:"user_id" db:"user_id"`
	ClientID  string    `json:"client_id" db:"client_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

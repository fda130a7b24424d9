// Package models - organization.go defines the Organization tenant root.
// Every other row in the system carries an org_id foreign key; cross-tenant
// reads are rejected as not-found so existence never leaks between tenants.
package models

import "time"

// Organization represents a tenant.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"` // unique short identifier
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

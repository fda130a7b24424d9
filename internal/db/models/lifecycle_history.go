// lifecycle_history.go defines the append-only record of status transitions.
// Rows are inserted only inside the same transaction as a successful
// transition and are never updated or deleted.
package models

import "time"

// LifecycleHistoryEntry records one status transition of a claim or policy.
type LifecycleHistoryEntry struct {
	ID           string    `json:"id" db:"id"`
	ResourceType string    `json:"resource_type" db:"resource_type"` // claim | policy
	ResourceID   string    `json:"resource_id" db:"resource_id"`
	FromStatus   string    `json:"from_status" db:"from_status"`
	ToStatus     string    `json:"to_status" db:"to_status"`
	Reason       *string   `json:"reason,omitempty" db:"reason"`
	Notes        *string   `json:"notes,omitempty" db:"notes"`
	CreatedByID  string    `json:"created_by_id" db:"created_by_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

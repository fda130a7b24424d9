// audit_log.go defines the AuditLog model for recording every mutating action,
// capturing actor, action, affected resource, client IP, user agent, and
// structured metadata. Metadata holds changed field names or the transition
// pair — never raw before/after values for sensitive fields.
package models

import "time"

// AuditLog represents an audit log entry for tracking user actions
type AuditLog struct {
	ID           string                 `json:"id" db:"id"`
	OrgID        string                 `json:"org_id" db:"org_id"`
	UserID       *string                `json:"user_id,omitempty" db:"user_id"` // nullable for system actions
	Action       string                 `json:"action" db:"action"`             // "claim.transitioned", "policy.created", "user.locked"
	ResourceType string                 `json:"resource_type" db:"resource_type"`
	ResourceID   string                 `json:"resource_id" db:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" db:"-"` // JSONB
	IPAddress    *string                `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    *string                `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}

// Audit actions recorded by the mutation pipeline and account flows. Kept as a
// closed set so audit consumers can handle known actions exhaustively and flag
// unknown ones.
const (
	ActionClaimCreated      = "claim.created"
	ActionClaimUpdated      = "claim.updated"
	ActionClaimTransitioned = "claim.transitioned"

	ActionPolicyCreated      = "policy.created"
	ActionPolicyUpdated      = "policy.updated"
	ActionPolicyTransitioned = "policy.transitioned"

	ActionClientCreated     = "client.created"
	ActionClientUpdated     = "client.updated"
	ActionClientDeactivated = "client.deactivated"

	ActionAffiliateCreated     = "affiliate.created"
	ActionAffiliateUpdated     = "affiliate.updated"
	ActionAffiliateDeactivated = "affiliate.deactivated"

	ActionInsurerCreated     = "insurer.created"
	ActionInsurerUpdated     = "insurer.updated"
	ActionInsurerDeactivated = "insurer.deactivated"

	ActionUserCreated       = "user.created"
	ActionUserUpdated       = "user.updated"
	ActionUserDeactivated   = "user.deactivated"
	ActionUserRegistered    = "user.registered"
	ActionUserEmailVerified = "user.email_verified"
	ActionUserPasswordReset = "user.password_reset"
	ActionUserTokenIssued   = "user.token_issued"
	ActionUserLocked        = "user.locked"
)

// KnownAction reports whether action belongs to the closed action set.
func KnownAction(action string) bool {
	switch action {
	case ActionClaimCreated, ActionClaimUpdated, ActionClaimTransitioned,
		ActionPolicyCreated, ActionPolicyUpdated, ActionPolicyTransitioned,
		ActionClientCreated, ActionClientUpdated, ActionClientDeactivated,
		ActionAffiliateCreated, ActionAffiliateUpdated, ActionAffiliateDeactivated,
		ActionInsurerCreated, ActionInsurerUpdated, ActionInsurerDeactivated,
		ActionUserCreated, ActionUserUpdated, ActionUserDeactivated,
		ActionUserRegistered, ActionUserEmailVerified, ActionUserPasswordReset,
		ActionUserTokenIssued, ActionUserLocked:
		return true
	}
	return false
}

// Package auth provides authentication and authorization primitives: role and
// scope definitions, JWT session tokens, password hashing, and single-use
// action tokens for email verification and password reset.
// See internal/middleware/auth.go for the request-time authentication logic and
// internal/services/access.go for per-request scope resolution against live
// membership data.
package auth

import "fmt"

// ScopeKind is the breadth of resources a role may reach. It is a closed set:
// the resolver switches exhaustively over these values so that adding a new
// kind is a compile-visible change, not a silent string mismatch.
type ScopeKind int

const (
	// ScopeAll grants tenant-wide access. Still fenced by org_id equality —
	// "all" never crosses organizations.
	ScopeAll ScopeKind = iota
	// ScopeClient restricts access to resources of clients the user has an
	// active membership with.
	ScopeClient
	// ScopeOwn restricts access to resources whose subject is the user's own
	// affiliate record.
	ScopeOwn
)

// String returns the wire representation of the scope kind.
func (k ScopeKind) String() string {
	switch k {
	case ScopeAll:
		return "all"
	case ScopeClient:
		return "client"
	case ScopeOwn:
		return "own"
	default:
		return fmt.Sprintf("ScopeKind(%d)", int(k))
	}
}

// Role is a user's role within their organization.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleAgent     Role = "agent"
	RoleAffiliate Role = "affiliate"
)

// AllRoles returns all valid roles.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleAgent, RoleAffiliate}
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	for _, known := range AllRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// ScopeForRole maps a role to the scope kind it resolves with. Admins and
// managers operate tenant-wide, agents are limited to their assigned clients,
// and affiliates see only their own records.
func ScopeForRole(r Role) (ScopeKind, error) {
	switch r {
	case RoleAdmin, RoleManager:
		return ScopeAll, nil
	case RoleAgent:
		return ScopeClient, nil
	case RoleAffiliate:
		return ScopeOwn, nil
	default:
		return 0, fmt.Errorf("unknown role: %q", r)
	}
}

// CanManageUsers reports whether the role may create, update, or deactivate
// other users in the organization.
func CanManageUsers(r Role) bool {
	return r == RoleAdmin
}

// CanManageDirectory reports whether the role may mutate clients, affiliates,
// and insurers.
func CanManageDirectory(r Role) bool {
	return r == RoleAdmin || r == RoleManager
}

// CanReadAudit reports whether the role may read the organization audit trail.
func CanReadAudit(r Role) bool {
	return r == RoleAdmin
}

// Package middleware (rbac.go) implements role-based authorization middleware.
//
// Roles are checked at request time against the user row loaded by
// AuthMiddleware rather than against the role embedded in the JWT. This is a
// deliberate design choice: when an admin changes a user's role, the change
// takes effect on that user's next request without needing to invalidate or
// reissue their token. Trusting the JWT's role claim would require token
// rotation on every permission change, which is operationally expensive and
// error-prone.

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/auth"
)

// currentRole reads the role set by AuthMiddleware.
func currentRole(c *gin.Context) (auth.Role, bool) {
	val, ok := c.Get(RoleContextKey)
	if !ok {
		return "", false
	}
	role, ok := val.(auth.Role)
	return role, ok
}

// requireRole aborts with 403 unless the authenticated user's role satisfies
// the predicate. Missing auth context is treated as forbidden rather than
// unauthorized: AuthMiddleware runs first, so reaching here without an
// identity means a route was wired without it.
func requireRole(allowed func(auth.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := currentRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		if !allowed(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}

// RequireUserAdmin restricts a route to roles that may manage user accounts.
func RequireUserAdmin() gin.HandlerFunc {
	return requireRole(auth.CanManageUsers)
}

// RequireDirectoryManager restricts a route to roles that may mutate clients,
// affiliates, and insurers.
func RequireDirectoryManager() gin.HandlerFunc {
	return requireRole(auth.CanManageDirectory)
}

// RequireAuditReader restricts a route to roles that may read the audit trail.
func RequireAuditReader() gin.HandlerFunc {
	return requireRole(auth.CanReadAudit)
}

// RequireAnyRole restricts a route to an explicit set of roles.
func RequireAnyRole(roles ...auth.Role) gin.HandlerFunc {
	return requireRole(func(r auth.Role) bool {
		for _, allowed := range roles {
			if r == allowed {
				return true
			}
		}
		return false
	})
}

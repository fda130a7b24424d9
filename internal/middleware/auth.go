// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and request metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → RBAC → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the user identity; RBAC reads from that context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/services"
)

// Context keys set by AuthMiddleware.
const (
	// UserContextKey holds the *models.User loaded for this request.
	UserContextKey = "user"
	// UserIDContextKey holds the authenticated user's ID.
	UserIDContextKey = "user_id"
	// OrgIDContextKey holds the authenticated user's organization ID.
	OrgIDContextKey = "org_id"
	// RoleContextKey holds the user's current role as auth.Role.
	RoleContextKey = "role"
)

// AuthMiddleware validates the Bearer session token and loads the user row.
//
// The role embedded in the JWT is ignored for authorization: the user row is
// re-read on every request, so a role change or deactivation takes effect on
// the user's next request without reissuing tokens. A token whose org claim no
// longer matches the user row is rejected outright.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired session token",
			})
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil || !user.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Account is not active",
			})
			return
		}
		if user.OrgID != claims.OrgID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired session token",
			})
			return
		}

		c.Set(UserContextKey, user)
		c.Set(UserIDContextKey, user.ID)
		c.Set(OrgIDContextKey, user.OrgID)
		c.Set(RoleContextKey, auth.Role(user.Role))

		c.Next()
	}
}

// CurrentUser returns the user loaded by AuthMiddleware, or nil when the
// request is unauthenticated.
func CurrentUser(c *gin.Context) *models.User {
	val, ok := c.Get(UserContextKey)
	if !ok {
		return nil
	}
	user, _ := val.(*models.User)
	return user
}

// CurrentActor builds the service-layer actor for the authenticated request.
// The boolean is false when AuthMiddleware did not run or rejected the request.
func CurrentActor(c *gin.Context) (services.Actor, bool) {
	user := CurrentUser(c)
	if user == nil {
		return services.Actor{}, false
	}
	return services.Actor{
		UserID: user.ID,
		OrgID:  user.OrgID,
		Role:   auth.Role(user.Role),
	}, true
}

// RequestMeta extracts the attribution fields recorded on audit rows.
func RequestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

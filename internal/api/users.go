// users.go implements the admin user management endpoints. Role and active
// changes take effect on the target's next request; no token revocation is
// needed because authorization re-reads the user row per request.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/middleware"
	"github.com/insureline/insureline/internal/services"
)

// UserHandlers handles admin user management endpoints.
type UserHandlers struct {
	users *services.UserService
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(users *services.UserService) *UserHandlers {
	return &UserHandlers{users: users}
}

// CreateUserRequest represents an admin-provisioned account.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// CreateHandler provisions a user in the admin's organization
// POST /api/v1/users
func (h *UserHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		user, err := h.users.Create(c.Request.Context(), actor, middleware.RequestMeta(c), services.CreateUserInput{
			Email:    req.Email,
			Name:     req.Name,
			Password: req.Password,
			Role:     req.Role,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// ListHandler lists users of the caller's organization
// GET /api/v1/users?page=&per_page=
func (h *UserHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		limit, offset, page := pagination(c)
		users, total, err := h.users.List(c.Request.Context(), actor, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"users": users,
			"pagination": gin.H{
				"page":     page,
				"per_page": limit,
				"total":    total,
			},
		})
	}
}

// GetHandler retrieves one user
// GET /api/v1/users/:id
func (h *UserHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		user, err := h.users.Get(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// UpdateUserRequest carries the mutable user fields; absent fields stay
// unchanged.
type UpdateUserRequest struct {
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

// UpdateHandler changes a user's name, role, or active flag
// PATCH /api/v1/users/:id
func (h *UserHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		user, err := h.users.Update(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.UpdateUserInput{
			Name:   req.Name,
			Role:   req.Role,
			Active: req.Active,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

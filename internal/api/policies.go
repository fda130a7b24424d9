// policies.go implements the policy endpoints, mirroring the claim handlers.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/middleware"
	"github.com/insureline/insureline/internal/services"
)

// PolicyHandlers handles policy endpoints.
type PolicyHandlers struct {
	policies *services.PolicyService
}

// NewPolicyHandlers creates a new PolicyHandlers instance
func NewPolicyHandlers(policies *services.PolicyService) *PolicyHandlers {
	return &PolicyHandlers{policies: policies}
}

// CreatePolicyRequest represents a new policy issuance.
type CreatePolicyRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	InsurerID    string `json:"insurer_id" binding:"required"`
	PolicyNumber string `json:"policy_number" binding:"required"`
	StartDate    string `json:"start_date" binding:"required"`
	EndDate      string `json:"end_date"`
	PremiumCents int64  `json:"premium_cents" binding:"required"`
	Notes        string `json:"notes"`
}

// CreateHandler issues a new policy in DRAFT
// POST /api/v1/policies
func (h *PolicyHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req CreatePolicyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		policy, err := h.policies.Create(c.Request.Context(), actor, middleware.RequestMeta(c), services.CreatePolicyInput{
			ClientID:     req.ClientID,
			InsurerID:    req.InsurerID,
			PolicyNumber: req.PolicyNumber,
			StartDate:    req.StartDate,
			EndDate:      req.EndDate,
			PremiumCents: req.PremiumCents,
			Notes:        req.Notes,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"policy": policy})
	}
}

// ListHandler lists policies visible to the caller
// GET /api/v1/policies?status=&client_id=&insurer_id=&page=&per_page=
func (h *PolicyHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		limit, offset, page := pagination(c)
		policies, err := h.policies.List(c.Request.Context(), actor, repositories.PolicyListFilter{
			Status:    c.Query("status"),
			ClientID:  c.Query("client_id"),
			InsurerID: c.Query("insurer_id"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"policies": policies,
			"pagination": gin.H{
				"page":     page,
				"per_page": limit,
			},
		})
	}
}

// GetHandler retrieves one policy
// GET /api/v1/policies/:id
func (h *PolicyHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		policy, err := h.policies.Get(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"policy": policy})
	}
}

// UpdatePolicyRequest carries the mutable policy fields; absent fields stay
// unchanged. policy_number and start_date are rejected once the policy has
// left DRAFT.
type UpdatePolicyRequest struct {
	PolicyNumber *string `json:"policy_number"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	PremiumCents *int64  `json:"premium_cents"`
	Notes        *string `json:"notes"`
}

// UpdateHandler changes policy fields
// PATCH /api/v1/policies/:id
func (h *PolicyHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req UpdatePolicyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		policy, err := h.policies.Update(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.UpdatePolicyInput{
			PolicyNumber: req.PolicyNumber,
			StartDate:    req.StartDate,
			EndDate:      req.EndDate,
			PremiumCents: req.PremiumCents,
			Notes:        req.Notes,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"policy": policy})
	}
}

// TransitionHandler moves a policy to a new status
// POST /api/v1/policies/:id/transition
func (h *PolicyHandlers) TransitionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		policy, err := h.policies.Transition(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.TransitionInput{
			To:     req.To,
			Reason: req.Reason,
			Notes:  req.Notes,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"policy": policy})
	}
}

// HistoryHandler lists a policy's lifecycle history
// GET /api/v1/policies/:id/history
func (h *PolicyHandlers) HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		history, err := h.policies.History(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}

// claims.go implements the claim endpoints. Authorization happens in the
// service layer: the handlers only translate HTTP to service calls and back.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/middleware"
	"github.com/insureline/insureline/internal/services"
)

// ClaimHandlers handles claim endpoints.
type ClaimHandlers struct {
	claims *services.ClaimService
}

// NewClaimHandlers creates a new ClaimHandlers instance
func NewClaimHandlers(claims *services.ClaimService) *ClaimHandlers {
	return &ClaimHandlers{claims: claims}
}

// CreateClaimRequest represents a new claim filing.
type CreateClaimRequest struct {
	PolicyID     string `json:"policy_id" binding:"required"`
	AffiliateID  string `json:"affiliate_id" binding:"required"`
	ClaimNumber  string `json:"claim_number" binding:"required"`
	AmountCents  int64  `json:"amount_cents" binding:"required"`
	Description  string `json:"description"`
	IncidentDate string `json:"incident_date" binding:"required"`
}

// CreateHandler files a new claim
// POST /api/v1/claims
func (h *ClaimHandlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req CreateClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		claim, err := h.claims.Create(c.Request.Context(), actor, middleware.RequestMeta(c), services.CreateClaimInput{
			PolicyID:     req.PolicyID,
			AffiliateID:  req.AffiliateID,
			ClaimNumber:  req.ClaimNumber,
			AmountCents:  req.AmountCents,
			Description:  req.Description,
			IncidentDate: req.IncidentDate,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"claim": claim})
	}
}

// ListHandler lists claims visible to the caller
// GET /api/v1/claims?status=&policy_id=&page=&per_page=
func (h *ClaimHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		limit, offset, page := pagination(c)
		claims, err := h.claims.List(c.Request.Context(), actor, repositories.ClaimListFilter{
			Status:   c.Query("status"),
			PolicyID: c.Query("policy_id"),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"claims": claims,
			"pagination": gin.H{
				"page":     page,
				"per_page": limit,
			},
		})
	}
}

// GetHandler retrieves one claim
// GET /api/v1/claims/:id
func (h *ClaimHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		claim, err := h.claims.Get(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"claim": claim})
	}
}

// UpdateClaimRequest carries the mutable claim fields; absent fields stay
// unchanged.
type UpdateClaimRequest struct {
	AmountCents *int64  `json:"amount_cents"`
	Description *string `json:"description"`
}

// UpdateHandler changes the amount or description of a claim
// PATCH /api/v1/claims/:id
func (h *ClaimHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req UpdateClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		claim, err := h.claims.Update(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.UpdateClaimInput{
			AmountCents: req.AmountCents,
			Description: req.Description,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"claim": claim})
	}
}

// TransitionRequest carries a lifecycle transition.
type TransitionRequest struct {
	To     string `json:"to" binding:"required"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// TransitionHandler moves a claim to a new status
// POST /api/v1/claims/:id/transition
func (h *ClaimHandlers) TransitionHandler() gin.HandlerFunc {
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

		claim, err := h.claims.Transition(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.TransitionInput{
			To:     req.To,
			Reason: req.Reason,
			Notes:  req.Notes,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"claim": claim})
	}
}

// HistoryHandler lists a claim's lifecycle history
// GET /api/v1/claims/:id/history
func (h *ClaimHandlers) HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		history, err := h.claims.History(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}

// directory.go implements the directory endpoints: clients, affiliates, and
// insurers. The route table guards mutations with the manager RBAC middleware
// and the service layer re-checks the role, so a misrouted handler still
// cannot mutate. Deletion endpoints deactivate; nothing in the directory is
// ever hard-deleted.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/middleware"
	"github.com/insureline/insureline/internal/services"
)

// DirectoryHandlers handles client, affiliate, and insurer endpoints.
type DirectoryHandlers struct {
	directory *services.DirectoryService
}

// NewDirectoryHandlers creates a new DirectoryHandlers instance
func NewDirectoryHandlers(directory *services.DirectoryService) *DirectoryHandlers {
	return &DirectoryHandlers{directory: directory}
}

// ClientRequest represents a client create or update.
type ClientRequest struct {
	Name  string `json:"name" binding:"required"`
	TaxID string `json:"tax_id"`
}

// CreateClientHandler registers a corporate client
// POST /api/v1/clients
func (h *DirectoryHandlers) CreateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req ClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		client, err := h.directory.CreateClient(c.Request.Context(), actor, middleware.RequestMeta(c), services.CreateClientInput{
			Name:  req.Name,
			TaxID: req.TaxID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"client": client})
	}
}

// ListClientsHandler lists clients of the caller's organization
// GET /api/v1/clients
func (h *DirectoryHandlers) ListClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		limit, offset, page := pagination(c)
		clients, err := h.directory.ListClients(c.Request.Context(), actor, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"clients": clients,
			"pagination": gin.H{
				"page":     page,
				"per_page": limit,
			},
		})
	}
}

// GetClientHandler retrieves one client
// GET /api/v1/clients/:id
func (h *DirectoryHandlers) GetClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		client, err := h.directory.GetClient(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"client": client})
	}
}

// UpdateClientHandler changes a client's name or tax ID
// PUT /api/v1/clients/:id
func (h *DirectoryHandlers) UpdateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req ClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		client, err := h.directory.UpdateClient(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.CreateClientInput{
			Name:  req.Name,
			TaxID: req.TaxID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"client": client})
	}
}

// DeactivateClientHandler soft-deletes a client
// DELETE /api/v1/clients/:id
func (h *DirectoryHandlers) DeactivateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		if err := h.directory.DeactivateClient(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Client deactivated"})
	}
}

// MembershipRequest links an agent user to a client.
type MembershipRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AddMembershipHandler grants an agent access to a client
// POST /api/v1/clients/:id/members
func (h *DirectoryHandlers) AddMembershipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req MembershipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if err := h.directory.GrantMembership(c.Request.Context(), actor, req.UserID, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Membership granted"})
	}
}

// RemoveMembershipHandler revokes an agent's access to a client. Takes effect
// on the agent's next request because scope is resolved per request.
// DELETE /api/v1/clients/:id/members/:user_id
func (h *DirectoryHandlers) RemoveMembershipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		if err := h.directory.RevokeMembership(c.Request.Context(), actor, c.Param("user_id"), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Membership revoked"})
	}
}

// AffiliateRequest represents an affiliate create or update. An empty
// national_id on update leaves the stored value unchanged.
type AffiliateRequest struct {
	ClientID   string `json:"client_id"`
	UserID     string `json:"user_id"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
	BirthDate  string `json:"birth_date"`
}

// CreateAffiliateHandler registers a covered person under a client
// POST /api/v1/affiliates
func (h *DirectoryHandlers) CreateAffiliateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req AffiliateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		if req.ClientID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client_id is required", "field": "client_id"})
			return
		}

		affiliate, err := h.directory.CreateAffiliate(c.Request.Context(), actor, middleware.RequestMeta(c), services.AffiliateInput{
			ClientID:   req.ClientID,
			UserID:     req.UserID,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			NationalID: req.NationalID,
			BirthDate:  req.BirthDate,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"affiliate": affiliate})
	}
}

// ListAffiliatesHandler lists affiliates of one client
// GET /api/v1/affiliates?client_id=
func (h *DirectoryHandlers) ListAffiliatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		clientID := c.Query("client_id")
		if clientID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client_id query parameter is required"})
			return
		}

		limit, offset, page := pagination(c)
		affiliates, err := h.directory.ListAffiliates(c.Request.Context(), actor, clientID, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"affiliates": affiliates,
			"pagination": gin.H{
				"page":     page,
				"per_page": limit,
			},
		})
	}
}

// GetAffiliateHandler retrieves one affiliate
// GET /api/v1/affiliates/:id
func (h *DirectoryHandlers) GetAffiliateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		affiliate, err := h.directory.GetAffiliate(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"affiliate": affiliate})
	}
}

// RevealNationalIDHandler decrypts an affiliate's national ID for a manager
// GET /api/v1/affiliates/:id/national-id
func (h *DirectoryHandlers) RevealNationalIDHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		nationalID, err := h.directory.RevealNationalID(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"national_id": nationalID})
	}
}

// UpdateAffiliateHandler changes an affiliate's profile fields
// PUT /api/v1/affiliates/:id
func (h *DirectoryHandlers) UpdateAffiliateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req AffiliateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		affiliate, err := h.directory.UpdateAffiliate(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.AffiliateInput{
			UserID:     req.UserID,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			NationalID: req.NationalID,
			BirthDate:  req.BirthDate,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"affiliate": affiliate})
	}
}

// DeactivateAffiliateHandler soft-deletes an affiliate
// DELETE /api/v1/affiliates/:id
func (h *DirectoryHandlers) DeactivateAffiliateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		if err := h.directory.DeactivateAffiliate(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Affiliate deactivated"})
	}
}

// InsurerRequest represents an insurer create or update. The code is immutable
// after creation; updates ignore it.
type InsurerRequest struct {
	Name         string `json:"name" binding:"required"`
	Code         string `json:"code"`
	ContactEmail string `json:"contact_email"`
}

// CreateInsurerHandler registers a carrier
// POST /api/v1/insurers
func (h *DirectoryHandlers) CreateInsurerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req InsurerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		if req.Code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code is required", "field": "code"})
			return
		}

		insurer, err := h.directory.CreateInsurer(c.Request.Context(), actor, middleware.RequestMeta(c), services.InsurerInput{
			Name:         req.Name,
			Code:         req.Code,
			ContactEmail: req.ContactEmail,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"insurer": insurer})
	}
}

// ListInsurersHandler lists insurers of the caller's organization
// GET /api/v1/insurers
func (h *DirectoryHandlers) ListInsurersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		limit, offset, page := pagination(c)
		insurers, err := h.directory.ListInsurers(c.Request.Context(), actor, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"insurers": insurers,
			"pagination": gin.H{
				"page":     page,
				"per_page": limit,
			},
		})
	}
}

// GetInsurerHandler retrieves one insurer
// GET /api/v1/insurers/:id
func (h *DirectoryHandlers) GetInsurerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		insurer, err := h.directory.GetInsurer(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"insurer": insurer})
	}
}

// UpdateInsurerHandler changes an insurer's name or contact email
// PUT /api/v1/insurers/:id
func (h *DirectoryHandlers) UpdateInsurerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		var req InsurerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		insurer, err := h.directory.UpdateInsurer(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id"), services.InsurerInput{
			Name:         req.Name,
			ContactEmail: req.ContactEmail,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"insurer": insurer})
	}
}

// DeactivateInsurerHandler soft-deletes an insurer
// DELETE /api/v1/insurers/:id
func (h *DirectoryHandlers) DeactivateInsurerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		if err := h.directory.DeactivateInsurer(c.Request.Context(), actor, middleware.RequestMeta(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Insurer deactivated"})
	}
}

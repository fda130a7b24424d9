// audit.go implements the audit log endpoints. Reads go straight to the
// repository; the org fence comes from the authenticated actor, never from a
// request parameter.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/db/repositories"
)

// AuditHandlers handles audit log endpoints.
type AuditHandlers struct {
	audits *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(audits *repositories.AuditRepository) *AuditHandlers {
	return &AuditHandlers{audits: audits}
}

// ListHandler lists audit log entries of the caller's organization
// GET /api/v1/audit-logs?user_id=&action=&resource_type=&resource_id=&start_date=&end_date=&page=&per_page=
func (h *AuditHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		filters := repositories.AuditFilters{}
		if v := c.Query("user_id"); v != "" {
			filters.UserID = &v
		}
		if v := c.Query("action"); v != "" {
			filters.Action = &v
		}
		if v := c.Query("resource_type"); v != "" {
			filters.ResourceType = &v
		}
		if v := c.Query("resource_id"); v != "" {
			filters.ResourceID = &v
		}
		if v := c.Query("start_date"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC3339"})
				return
			}
			filters.StartDate = &t
		}
		if v := c.Query("end_date"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be RFC3339"})
				return
			}
			filters.EndDate = &t
		}

		limit, offset, page := pagination(c)
		logs, total, err := h.audits.ListAuditLogs(c.Request.Context(), actor.OrgID, filters, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": logs,
			"pagination": gin.H{
				"page":     page,
				"per_page": limit,
				"total":    total,
			},
		})
	}
}

// GetHandler retrieves one audit log entry
// GET /api/v1/audit-logs/:id
func (h *AuditHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requireActor(c)
		if !ok {
			return
		}

		entry, err := h.audits.GetAuditLog(c.Request.Context(), actor.OrgID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if entry == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "audit log entry not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"audit_log": entry})
	}
}

// errors.go maps service-layer errors onto HTTP responses. Handlers call
// respondError instead of switching on error types themselves, so every
// endpoint reports the same status for the same failure. Anything outside the
// known set is logged and returned as a generic 500; internal details never
// reach the client.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/middleware"
	"github.com/insureline/insureline/internal/services"
)

// respondError writes the HTTP response for a service error and aborts the
// request. Cross-tenant reads surface as NotFoundError in the service layer,
// so a 404 here never confirms that a resource exists in another organization.
func respondError(c *gin.Context, err error) {
	var (
		notFound     *services.NotFoundError
		forbidden    *services.ForbiddenError
		validation   *services.ValidationError
		invalidTrans *services.InvalidTransitionError
		reasonReq    *services.ReasonRequiredError
		conflict     *services.UniqueConflictError
		locked       *services.AccountLockedError
	)

	switch {
	case errors.As(err, &notFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": notFound.Error()})

	case errors.As(err, &forbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": forbidden.Error()})

	case errors.As(err, &validation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": validation.Message,
			"field": validation.Field,
		})

	case errors.As(err, &invalidTrans):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": invalidTrans.Error()})

	case errors.As(err, &reasonReq):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": reasonReq.Error()})

	case errors.As(err, &conflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error": conflict.Error(),
			"field": conflict.Field,
		})

	case errors.As(err, &locked):
		if retry := time.Until(locked.Until); retry > 0 {
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		}
		c.AbortWithStatusJSON(http.StatusLocked, gin.H{
			"error":        "account is temporarily locked",
			"locked_until": locked.Until.UTC().Format(time.RFC3339),
		})

	case errors.Is(err, services.ErrStale):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error": "resource was modified concurrently, re-read and retry",
		})

	case errors.Is(err, services.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})

	case errors.Is(err, services.ErrEmailNotVerified):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Email address not verified"})

	case errors.Is(err, services.ErrTokenNotFound),
		errors.Is(err, services.ErrTokenExpired),
		errors.Is(err, services.ErrTokenAlreadyUsed):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// requireActor fetches the authenticated actor from the request context. The
// auth middleware guarantees it on every route in the authenticated group;
// missing means a route was wired without the middleware.
func requireActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return services.Actor{}, false
	}
	return actor, true
}

// bindError reports a malformed or incomplete request body.
func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}

// pagination reads page/per_page query parameters and converts them to a
// limit/offset pair.
func pagination(c *gin.Context) (limit, offset, page int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}
	return perPage, (page - 1) * perPage, page
}

// accounts.go implements the public account endpoints: login, registration,
// email verification, and password reset. The resend and forgot-password
// endpoints answer identically whether or not the email maps to an account;
// the response body never confirms that an address is registered.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insureline/insureline/internal/middleware"
	"github.com/insureline/insureline/internal/services"
)

// AccountHandlers handles authentication and account lifecycle endpoints.
type AccountHandlers struct {
	accounts *services.AccountService
	login    *services.LoginService
}

// NewAccountHandlers creates a new AccountHandlers instance
func NewAccountHandlers(accounts *services.AccountService, login *services.LoginService) *AccountHandlers {
	return &AccountHandlers{accounts: accounts, login: login}
}

// LoginRequest represents a password login attempt.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler authenticates by email and password
// POST /api/v1/auth/login
func (h *AccountHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		user, token, err := h.login.Login(c.Request.Context(), middleware.RequestMeta(c), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// RegisterRequest represents a self-registration.
type RegisterRequest struct {
	OrgCode  string `json:"org_code" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler creates an unverified agent account
// POST /api/v1/auth/register
func (h *AccountHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		user, err := h.accounts.Register(c.Request.Context(), middleware.RequestMeta(c), services.RegisterInput{
			OrgCode:  req.OrgCode,
			Email:    req.Email,
			Name:     req.Name,
			Password: req.Password,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user":    user,
			"message": "Registration successful, check your email for a verification link",
		})
	}
}

// TokenRequest carries a raw single-use action token.
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmailHandler redeems an email verification token
// POST /api/v1/auth/verify-email
func (h *AccountHandlers) VerifyEmailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if err := h.accounts.VerifyEmail(c.Request.Context(), middleware.RequestMeta(c), req.Token); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
	}
}

// EmailRequest carries a bare email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResendVerificationHandler issues a fresh verification token
// POST /api/v1/auth/resend-verification
func (h *AccountHandlers) ResendVerificationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if err := h.accounts.ResendVerification(c.Request.Context(), middleware.RequestMeta(c), req.Email); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "If the account exists and is pending verification, a new link has been sent",
		})
	}
}

// ForgotPasswordHandler issues a password reset token
// POST /api/v1/auth/forgot-password
func (h *AccountHandlers) ForgotPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if err := h.accounts.ForgotPassword(c.Request.Context(), middleware.RequestMeta(c), req.Email); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "If the account exists, a password reset link has been sent",
		})
	}
}

// ResetPasswordRequest carries a reset token and the new password.
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordHandler redeems a reset token and replaces the password
// POST /api/v1/auth/reset-password
func (h *AccountHandlers) ResetPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if err := h.accounts.ResetPassword(c.Request.Context(), middleware.RequestMeta(c), req.Token, req.Password); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}

// MeHandler returns the authenticated caller's own account
// GET /api/v1/me
func (h *AccountHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// Package api wires together all HTTP routes for the InsureLine backend.
//
// Route grouping philosophy:
//   - /api/v1/auth/ endpoints are public but sit behind the tighter login
//     rate limit, because they accept credentials and single-use tokens.
//   - Everything else under /api/v1/ requires a valid JWT; the middleware
//     chain is Security -> RateLimit -> Auth -> RBAC -> Handler, and the
//     route table adds the RBAC guard per group so a route can never be
//     mounted with more privilege than its group grants.
//
// NewRouter also owns the background pieces that live for the whole process:
// the token sweeper, the policy expirer, and the audit shipper. The caller
// stops them through BackgroundServices.Shutdown after draining the HTTP
// server.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/insureline/insureline/internal/audit"
	"github.com/insureline/insureline/internal/config"
	"github.com/insureline/insureline/internal/crypto"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/jobs"
	"github.com/insureline/insureline/internal/middleware"
	"github.com/insureline/insureline/internal/safego"
	"github.com/insureline/insureline/internal/services"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	tokenSweeper  *jobs.TokenSweeper
	policyExpirer *jobs.PolicyExpirer
	shipper       audit.Shipper
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained
// first; the shipper closes last so their audit rows still go out.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.tokenSweeper != nil {
		bg.tokenSweeper.Stop()
	}
	if bg.policyExpirer != nil {
		bg.policyExpirer.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Error("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	bg := &BackgroundServices{}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	clientRepo := repositories.NewClientRepository(db)
	affiliateRepo := repositories.NewAffiliateRepository(db)
	insurerRepo := repositories.NewInsurerRepository(db)
	policyRepo := repositories.NewPolicyRepository(db)
	claimRepo := repositories.NewClaimRepository(db)
	historyRepo := repositories.NewHistoryRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)

	// Field cipher for affiliate national IDs
	cipher, err := newFieldCipher(&cfg.Crypto)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize field cipher: %w", err)
	}

	// Mutation pipeline; every audited write goes through it
	mutator := services.NewMutator(repositories.NewTxRunner(db), historyRepo, auditRepo)

	if cfg.Audit.Shipper.Enabled {
		shipper, err := audit.NewWebhookShipper(audit.WebhookOptions{
			URL:           cfg.Audit.Shipper.URL,
			Headers:       cfg.Audit.Shipper.Headers,
			Timeout:       time.Duration(cfg.Audit.Shipper.TimeoutSecs) * time.Second,
			BatchSize:     cfg.Audit.Shipper.BatchSize,
			FlushInterval: time.Duration(cfg.Audit.Shipper.FlushInterval) * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize audit shipper: %w", err)
		}
		mutator.SetShipper(shipper)
		bg.shipper = shipper
		slog.Info("audit shipper enabled", "url", cfg.Audit.Shipper.URL)
	}

	// Initialize services
	resolver := services.NewAccessResolver(clientRepo, affiliateRepo)
	claimService := services.NewClaimService(claimRepo, policyRepo, affiliateRepo, historyRepo, resolver, mutator)
	policyService := services.NewPolicyService(policyRepo, clientRepo, insurerRepo, historyRepo, resolver, mutator)
	directoryService := services.NewDirectoryService(clientRepo, affiliateRepo, insurerRepo, cipher, mutator)
	userService := services.NewUserService(userRepo, mutator)
	loginService := services.NewLoginService(userRepo, mutator, services.LockoutPolicy{
		Threshold:    cfg.Auth.Lockout.Threshold,
		LockDuration: cfg.Auth.Lockout.LockDuration,
	}, cfg.Auth.SessionTTL)
	accountService := services.NewAccountService(orgRepo, userRepo, tokenRepo, mutator,
		&services.LogNotifier{Logger: slog.Default()},
		services.TokenTTLs{
			Verification:  cfg.Auth.Tokens.VerificationTTL,
			PasswordReset: cfg.Auth.Tokens.PasswordResetTTL,
		})

	// Background jobs
	bg.tokenSweeper = jobs.NewTokenSweeper(tokenRepo, 0, 0)
	bg.policyExpirer = jobs.NewPolicyExpirer(policyRepo, mutator, 0)
	safego.Go(func() { bg.tokenSweeper.Start(context.Background()) })
	safego.Go(func() { bg.policyExpirer.Start(context.Background()) })

	// Redis backs the rate limiter when configured; otherwise the limiter
	// falls back to its in-process implementation.
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes Redis probe when configured)
	router.GET("/ready", readinessHandler(db, redisClient))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	accountHandlers := NewAccountHandlers(accountService, loginService)
	claimHandlers := NewClaimHandlers(claimService)
	policyHandlers := NewPolicyHandlers(policyService)
	directoryHandlers := NewDirectoryHandlers(directoryService)
	userHandlers := NewUserHandlers(userService)
	auditHandlers := NewAuditHandlers(auditRepo)

	// Public credential endpoints, rate limited harder than the rest of the
	// API because they are the brute-force surface.
	authRoutes := router.Group("/api/v1/auth")
	if cfg.Security.RateLimiting.Enabled {
		loginLimiter := middleware.NewLimiter(redisClient, cfg.Security.RateLimiting.LoginPerMinute, 0)
		authRoutes.Use(middleware.RateLimitMiddleware(loginLimiter, cfg.Security.RateLimiting.LoginPerMinute))
	}
	authRoutes.POST("/login", accountHandlers.LoginHandler())
	authRoutes.POST("/register", accountHandlers.RegisterHandler())
	authRoutes.POST("/verify-email", accountHandlers.VerifyEmailHandler())
	authRoutes.POST("/resend-verification", accountHandlers.ResendVerificationHandler())
	authRoutes.POST("/forgot-password", accountHandlers.ForgotPasswordHandler())
	authRoutes.POST("/reset-password", accountHandlers.ResetPasswordHandler())

	// Authenticated API
	v1 := router.Group("/api/v1")
	if cfg.Security.RateLimiting.Enabled {
		apiLimiter := middleware.NewLimiter(redisClient, cfg.Security.RateLimiting.RequestsPerMinute, cfg.Security.RateLimiting.Burst)
		v1.Use(middleware.RateLimitMiddleware(apiLimiter, cfg.Security.RateLimiting.RequestsPerMinute))
	}
	v1.Use(middleware.AuthMiddleware(userRepo))

	v1.GET("/me", accountHandlers.MeHandler())

	claims := v1.Group("/claims")
	{
		claims.POST("", claimHandlers.CreateHandler())
		claims.GET("", claimHandlers.ListHandler())
		claims.GET("/:id", claimHandlers.GetHandler())
		claims.PATCH("/:id", claimHandlers.UpdateHandler())
		claims.POST("/:id/transition", claimHandlers.TransitionHandler())
		claims.GET("/:id/history", claimHandlers.HistoryHandler())
	}

	policies := v1.Group("/policies")
	{
		policies.POST("", policyHandlers.CreateHandler())
		policies.GET("", policyHandlers.ListHandler())
		policies.GET("/:id", policyHandlers.GetHandler())
		policies.PATCH("/:id", policyHandlers.UpdateHandler())
		policies.POST("/:id/transition", policyHandlers.TransitionHandler())
		policies.GET("/:id/history", policyHandlers.HistoryHandler())
	}

	manager := middleware.RequireDirectoryManager()

	clients := v1.Group("/clients")
	{
		clients.GET("", directoryHandlers.ListClientsHandler())
		clients.GET("/:id", directoryHandlers.GetClientHandler())
		clients.POST("", manager, directoryHandlers.CreateClientHandler())
		clients.PUT("/:id", manager, directoryHandlers.UpdateClientHandler())
		clients.DELETE("/:id", manager, directoryHandlers.DeactivateClientHandler())
		clients.POST("/:id/members", manager, directoryHandlers.AddMembershipHandler())
		clients.DELETE("/:id/members/:user_id", manager, directoryHandlers.RemoveMembershipHandler())
	}

	affiliates := v1.Group("/affiliates")
	{
		affiliates.GET("", directoryHandlers.ListAffiliatesHandler())
		affiliates.GET("/:id", directoryHandlers.GetAffiliateHandler())
		affiliates.GET("/:id/national-id", manager, directoryHandlers.RevealNationalIDHandler())
		affiliates.POST("", manager, directoryHandlers.CreateAffiliateHandler())
		affiliates.PUT("/:id", manager, directoryHandlers.UpdateAffiliateHandler())
		affiliates.DELETE("/:id", manager, directoryHandlers.DeactivateAffiliateHandler())
	}

	insurers := v1.Group("/insurers")
	{
		insurers.GET("", directoryHandlers.ListInsurersHandler())
		insurers.GET("/:id", directoryHandlers.GetInsurerHandler())
		insurers.POST("", manager, directoryHandlers.CreateInsurerHandler())
		insurers.PUT("/:id", manager, directoryHandlers.UpdateInsurerHandler())
		insurers.DELETE("/:id", manager, directoryHandlers.DeactivateInsurerHandler())
	}

	users := v1.Group("/users", middleware.RequireUserAdmin())
	{
		users.POST("", userHandlers.CreateHandler())
		users.GET("", userHandlers.ListHandler())
		users.GET("/:id", userHandlers.GetHandler())
		users.PATCH("/:id", userHandlers.UpdateHandler())
	}

	auditLogs := v1.Group("/audit-logs", middleware.RequireAuditReader())
	{
		auditLogs.GET("", auditHandlers.ListHandler())
		auditLogs.GET("/:id", auditHandlers.GetHandler())
	}

	return router, bg, nil
}

// newFieldCipher builds the affiliate field cipher from configuration, either
// from an explicit key or by deriving one from a passphrase.
func newFieldCipher(cfg *config.CryptoConfig) (*crypto.FieldCipher, error) {
	if key := cfg.FieldKey(); key != nil {
		return crypto.NewFieldCipher(key)
	}
	if cfg.Passphrase != "" {
		return crypto.DeriveFieldCipher(cfg.Passphrase, []byte(cfg.Salt), cfg.Iterations)
	}
	return nil, fmt.Errorf("field encryption requires crypto.encryption_key or crypto.passphrase")
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service. Unlike the
// liveness probe (/health), this also checks Redis when it is configured, so
// a readiness gate fails while rate limiting state is unreachable.
func readinessHandler(db *sqlx.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs each request as a structured slog record. The output
// format (json or text) follows the global handler configured in
// telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowMethods := strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	if allowMethods == "" {
		allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

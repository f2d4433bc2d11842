package api

import (
	"time"

	"trivia-api/internal/auth"
	"trivia-api/internal/config"
	"trivia-api/internal/middleware"
	"trivia-api/internal/services"

	"github.com/gin-gonic/gin"
)

// Handlers holds the services behind the HTTP surface
type Handlers struct {
	cfg       *config.Config
	ledger    *services.LedgerService
	claims    *services.DeviceClaimService
	purchases *services.PurchaseService
	questions *services.QuestionService
	eraser    *services.UserEraserService
}

// Dependencies wires the router
type Dependencies struct {
	Config    *config.Config
	Ledger    *services.LedgerService
	Claims    *services.DeviceClaimService
	Purchases *services.PurchaseService
	Questions *services.QuestionService
	Eraser    *services.UserEraserService
	Verifier  auth.Verifier
	Limiter   *services.RateLimiter
	// Ready reports backend health for /health, nil means always ready
	Ready func() error
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	h := &Handlers{
		cfg:       deps.Config,
		ledger:    deps.Ledger,
		claims:    deps.Claims,
		purchases: deps.Purchases,
		questions: deps.Questions,
		eraser:    deps.Eraser,
	}

	api := r.Group("/api")
	{
		// Question generation (anonymous callers allowed, rate limited)
		trivia := api.Group("/trivia")
		trivia.Use(middleware.BearerAuth(deps.Verifier, false), middleware.RateLimit(deps.Limiter, "questions"))
		{
			trivia.POST("/questions", h.GenerateQuestion)
		}

		wallet := api.Group("/wallet")
		{
			// The client names the user explicitly
			wallet.POST("/consume", h.ConsumeTokens)
			wallet.POST("/initial-tokens", middleware.BearerAuth(deps.Verifier, true), h.GrantInitialTokens)
			wallet.GET("/balance", middleware.BearerAuth(deps.Verifier, true), h.GetBalance)
		}

		// RevenueCat calls this with the shared secret in Authorization
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/revenuecat", h.RevenueCatWebhook)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AdminKeyAuth(deps.Config.AdminAPIKey))
		{
			admin.POST("/users/delete", h.DeleteUsers)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status, code := "ok", 200
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				status, code = "unavailable", 503
			}
		}
		c.JSON(code, gin.H{
			"status":  status,
			"service": "trivia-api",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})
}

package middleware

import (
	"net/http"
	"strconv"

	"trivia-api/internal/apperr"
	"trivia-api/internal/response"
	"trivia-api/internal/services"
	"trivia-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// RateLimit limits requests per caller, keyed by user id or client IP.
// Limiter failures let the request through.
func RateLimit(limiter *services.RateLimiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if principal := PrincipalFrom(c); principal != nil {
			subject = "user:" + principal.UserID
		}

		decision, err := limiter.Allow(c.Request.Context(), scope, subject)
		if err != nil {
			logging.Warnf("Rate limiter unavailable for %s: %v", scope, err)
			c.Next()
			return
		}
		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
			response.ErrorJSON(c, http.StatusTooManyRequests, apperr.ResourceExhausted, "Too many requests, please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"trivia-api/internal/apperr"
	"trivia-api/internal/auth"
	"trivia-api/internal/response"
	"trivia-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// BearerAuth verifies "Authorization: Bearer <token>" and stores the caller
// in the context. When required is false, requests without a token pass as
// anonymous but an invalid token is still rejected.
func BearerAuth(verifier auth.Verifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				response.ErrorJSON(c, http.StatusUnauthorized, apperr.Unauthenticated, "The function must be called while authenticated.")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.ErrorJSON(c, http.StatusUnauthorized, apperr.Unauthenticated, "Malformed Authorization header")
			c.Abort()
			return
		}

		if verifier == nil {
			logging.Errorf("Bearer token received but no verifier is configured")
			response.ErrorJSON(c, http.StatusUnauthorized, apperr.Unauthenticated, "Authentication is not configured")
			c.Abort()
			return
		}

		principal, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			logging.Warnf("Rejected bearer token: %v", err)
			response.ErrorJSON(c, http.StatusUnauthorized, apperr.Unauthenticated, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, nil for anonymous requests
func PrincipalFrom(c *gin.Context) *auth.Principal {
	if v, exists := c.Get(principalKey); exists {
		if principal, ok := v.(*auth.Principal); ok {
			return principal
		}
	}
	return nil
}

// AdminKeyAuth guards admin routes with the X-Admin-Key header.
// An empty configured key rejects every request.
func AdminKeyAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Admin-Key")
		if adminKey == "" || provided == "" || !SecureCompare(provided, adminKey) {
			response.ErrorJSON(c, http.StatusUnauthorized, apperr.Unauthenticated, "Invalid admin key")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SecureCompare compares secrets in constant time
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

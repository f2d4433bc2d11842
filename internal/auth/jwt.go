package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"trivia-api/pkg/logging"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingClaims = errors.New("missing required claims")
)

// Principal is an authenticated caller
type Principal struct {
	UserID string
	Email  string // empty when the token carries no email claim
}

// Verifier turns a bearer token into a principal
type Verifier interface {
	Verify(tokenString string) (*Principal, error)
}

// JWTVerifier checks signed access tokens against a JWKS endpoint
type JWTVerifier struct {
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
	mu      sync.RWMutex
}

// NewJWTVerifier fetches the key set and keeps it refreshed in the background.
func NewJWTVerifier(jwksURL string) (*JWTVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logging.Errorf("Failed to refresh JWKS: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	return &JWTVerifier{
		jwks:    jwks,
		keyFunc: jwks.Keyfunc,
	}, nil
}

// NewKeyfuncVerifier verifies tokens with a fixed key function
func NewKeyfuncVerifier(keyFunc jwt.Keyfunc) *JWTVerifier {
	return &JWTVerifier{keyFunc: keyFunc}
}

func (v *JWTVerifier) Verify(tokenString string) (*Principal, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	token, err := jwt.Parse(tokenString, v.keyFunc, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMissingClaims
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMissingClaims)
	}

	email, _ := claims["email"].(string)

	return &Principal{
		UserID: userID,
		Email:  email,
	}, nil
}

func (v *JWTVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trivia-api/internal/ai"
	"trivia-api/internal/api"
	"trivia-api/internal/auth"
	"trivia-api/internal/config"
	"trivia-api/internal/database"
	"trivia-api/internal/identity"
	"trivia-api/internal/middleware"
	"trivia-api/internal/services"
	"trivia-api/internal/store"
	"trivia-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to initialize config:", err)
	}

	// Initialize logging
	logging.InitLogging(cfg.Mode)

	ctx := context.Background()

	// Redis backs the rate limiter and, optionally, the ledger
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.OpenRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to initialize Redis:", err)
		}
	}

	ledgerStore, err := openStore(cfg, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize ledger store:", err)
	}
	logging.Infof("Ledger backend: %s", ledgerStore.Name())

	generator, err := ai.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}

	var verifier auth.Verifier
	if cfg.JWKSURL != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL)
		if err != nil {
			log.Fatal("Failed to initialize JWT verifier:", err)
		}
		defer jwtVerifier.Close()
		verifier = jwtVerifier
	} else {
		logging.Warnf("JWKS_URL and WORKOS_CLIENT_ID not set, authenticated routes will reject every request")
	}

	if cfg.WorkOSAPIKey == "" {
		logging.Warnf("WORKOS_API_KEY not set, identity deletion will fail")
	}
	if cfg.RevenueCatAuthHeader == "" {
		logging.Warnf("REVENUECAT_AUTH_HEADER not set, purchase webhooks will be rejected")
	}

	var limiterClient redis.UniversalClient
	if redisClient != nil {
		limiterClient = redisClient
	}
	limiter := services.NewRateLimiter(limiterClient, cfg.RedisPrefix, cfg.QuestionRateLimit, time.Minute)

	logging.Infof("Recognized products: %s", strings.Join(cfg.ProductIDs(), ", "))

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	api.SetupRoutes(r, api.Dependencies{
		Config:    cfg,
		Ledger:    services.NewLedgerService(ledgerStore),
		Claims:    services.NewDeviceClaimService(ledgerStore, cfg),
		Purchases: services.NewPurchaseService(ledgerStore, cfg),
		Questions: services.NewQuestionService(generator, cfg),
		Eraser:    services.NewUserEraserService(identity.NewWorkOSDirectory(cfg.WorkOSAPIKey), ledgerStore, cfg),
		Verifier:  verifier,
		Limiter:   limiter,
		Ready: func() error {
			readyCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := ledgerStore.GetBalance(readyCtx, "__health__")
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.QuestionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Infof("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Errorf("Server forced to shutdown: %v", err)
	}

	if err := ledgerStore.Close(); err != nil {
		logging.Errorf("Failed to close ledger store: %v", err)
	}
	if redisClient != nil && cfg.LedgerBackend != config.BackendRedis {
		if err := redisClient.Close(); err != nil {
			logging.Errorf("Failed to close Redis: %v", err)
		}
	}
	logging.Infof("Server stopped")
}

// openStore selects the ledger backend
func openStore(cfg *config.Config, redisClient *redis.Client) (*store.Store, error) {
	opts := store.Options{MaxAttempts: cfg.LedgerMaxAttempts}

	switch cfg.LedgerBackend {
	case config.BackendRedis:
		return store.NewRedisStore(redisClient, cfg.RedisPrefix, opts), nil
	case config.BackendMemory:
		logging.Warnf("Using in-memory ledger, balances are lost on restart")
		return store.NewMemoryStore(opts), nil
	default:
		db, err := database.OpenSQL(cfg)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db, opts), nil
	}
}

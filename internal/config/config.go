package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends
const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const workosJWKSURLTemplate = "https://api.workos.com/sso/jwks/%s"

// DefaultProductTokens maps store product ids to the tokens they credit
var DefaultProductTokens = map[string]int64{
	"anytrivia_anytokens_20_v1":  20,
	"anytrivia_anytokens_50_v1":  50,
	"anytrivia_anytokens_100_v1": 100,
	"anytrivia_anytokens_200_v1": 200,
}

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Database configuration
	DatabaseURL string
	SQLitePath  string

	// Redis configuration
	RedisURL    string
	RedisPrefix string

	// Ledger configuration
	LedgerBackend     string
	LedgerMaxAttempts int

	// Gemini configuration
	GeminiAPIKey      string
	GeminiModel       string
	QuestionTimeout   time.Duration
	MaxQuestions      int
	QuestionRateLimit int
	Pricing           Pricing

	// Wallet configuration
	InitialGrantTokens   int64
	RevenueCatAuthHeader string
	ProductTokens        map[string]int64

	// Identity configuration
	WorkOSAPIKey   string
	WorkOSClientID string
	JWKSURL        string
	AdminAPIKey    string

	DeleteBatchSize int
}

// Pricing holds USD prices per million tokens of model usage
type Pricing struct {
	InputPer1M   float64
	OutputPer1M  float64
	CachingPer1M float64
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env file is fine, the environment is authoritative
	_ = godotenv.Load()

	productTokens := DefaultProductTokens
	if raw := os.Getenv("PRODUCT_TOKENS"); raw != "" {
		parsed, err := ParseProductTokens(raw)
		if err != nil {
			return nil, err
		}
		productTokens = parsed
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Mode:                 getEnv("GIN_MODE", "debug"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SQLitePath:           getEnv("SQLITE_PATH", "trivia-api.db"),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisPrefix:          getEnv("REDIS_PREFIX", "trivia"),
		LedgerBackend:        strings.ToLower(getEnv("LEDGER_BACKEND", BackendSQL)),
		LedgerMaxAttempts:    getEnvInt("LEDGER_MAX_ATTEMPTS", 5),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		QuestionTimeout:      time.Duration(getEnvInt("QUESTION_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxQuestions:         getEnvInt("MAX_QUESTIONS_PER_REQUEST", 20),
		QuestionRateLimit:    getEnvInt("QUESTION_RATE_LIMIT_PER_MINUTE", 0),
		InitialGrantTokens:   int64(getEnvInt("INITIAL_GRANT_TOKENS", 10)),
		RevenueCatAuthHeader: getEnv("REVENUECAT_AUTH_HEADER", ""),
		ProductTokens:        productTokens,
		WorkOSAPIKey:         getEnv("WORKOS_API_KEY", ""),
		WorkOSClientID:       getEnv("WORKOS_CLIENT_ID", ""),
		JWKSURL:              getEnv("JWKS_URL", ""),
		AdminAPIKey:          getEnv("ADMIN_API_KEY", ""),
		DeleteBatchSize:      getEnvInt("DELETE_BATCH_SIZE", 500),
		Pricing: Pricing{
			InputPer1M:   getEnvFloat("PRICE_INPUT_PER_1M", 0.50),
			OutputPer1M:  getEnvFloat("PRICE_OUTPUT_PER_1M", 3.00),
			CachingPer1M: getEnvFloat("PRICE_CACHING_PER_1M", 0.05),
		},
	}

	if cfg.JWKSURL == "" && cfg.WorkOSClientID != "" {
		cfg.JWKSURL = fmt.Sprintf(workosJWKSURLTemplate, cfg.WorkOSClientID)
	}

	switch cfg.LedgerBackend {
	case BackendSQL, BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("LEDGER_BACKEND=redis requires REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	if cfg.DeleteBatchSize <= 0 {
		cfg.DeleteBatchSize = 500
	}

	return cfg, nil
}

// ParseProductTokens parses "product=tokens,product=tokens".
func ParseProductTokens(raw string) (map[string]int64, error) {
	table := make(map[string]int64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		productID, amount, ok := strings.Cut(pair, "=")
		productID = strings.TrimSpace(productID)
		if !ok || productID == "" {
			return nil, fmt.Errorf("invalid PRODUCT_TOKENS entry %q", pair)
		}
		tokens, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil || tokens <= 0 {
			return nil, fmt.Errorf("invalid token amount for product %q", productID)
		}
		table[productID] = tokens
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("PRODUCT_TOKENS is empty")
	}
	return table, nil
}

// ProductIDs returns the configured product ids in stable order
func (c *Config) ProductIDs() []string {
	ids := make([]string, 0, len(c.ProductTokens))
	for id := range c.ProductTokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

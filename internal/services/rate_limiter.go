package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RateLimitDecision is the outcome of one limiter check
type RateLimitDecision struct {
	Allowed    bool
	Count      int
	RetryAfter int // seconds until the window resets
}

// RateLimiter is a fixed-window request limiter shared across instances through Redis
type RateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
// A nil client or a non-positive limit disables limiting.
func NewRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RateLimiter {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "trivia"
	}
	return &RateLimiter{
		client: client,
		prefix: trimmedPrefix + ":rate_limit",
		limit:  limit,
		window: window,
	}
}

// Enabled reports whether the limiter enforces anything
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.client != nil && r.limit > 0 && r.window > 0
}

// Allow counts one request of subject within scope.
func (r *RateLimiter) Allow(ctx context.Context, scope, subject string) (RateLimitDecision, error) {
	if !r.Enabled() {
		return RateLimitDecision{Allowed: true}, nil
	}

	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return RateLimitDecision{Allowed: true}, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
	rawResult, err := rateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return RateLimitDecision{}, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return RateLimitDecision{}, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}
	count, ok := values[0].(int64)
	if !ok {
		return RateLimitDecision{}, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return RateLimitDecision{}, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return RateLimitDecision{
		Allowed:    int(count) <= r.limit,
		Count:      int(count),
		RetryAfter: retryAfter,
	}, nil
}

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivia-api/internal/auth"
	"trivia-api/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (*auth.Principal, error) {
	if token == "good" {
		return &auth.Principal{UserID: "user-1"}, nil
	}
	return nil, errors.New("bad token")
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		if p := PrincipalFrom(c); p != nil {
			c.String(http.StatusOK, p.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	r.GET("/", handlers...)
	return r
}

func doGet(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		required   bool
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "required valid", required: true, header: "Bearer good", wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "required missing", required: true, header: "", wantStatus: http.StatusUnauthorized},
		{name: "required invalid", required: true, header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "required malformed", required: true, header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "optional missing", required: false, header: "", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "optional valid", required: false, header: "Bearer good", wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "optional invalid", required: false, header: "Bearer bad", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(BearerAuth(stubVerifier{}, tt.required))
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := doGet(r, headers)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestAdminKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{name: "match", configured: "s3cret", provided: "s3cret", wantStatus: http.StatusOK},
		{name: "mismatch", configured: "s3cret", provided: "guess", wantStatus: http.StatusUnauthorized},
		{name: "missing", configured: "s3cret", provided: "", wantStatus: http.StatusUnauthorized},
		{name: "not configured", configured: "", provided: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(AdminKeyAuth(tt.configured))
			w := doGet(r, map[string]string{"X-Admin-Key": tt.provided})
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := newRouter(RequestLogger())

	w := doGet(r, nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}

	w = doGet(r, map[string]string{"X-Request-ID": "abc"})
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := services.NewRateLimiter(client, "test", 1, time.Minute)
	r := newRouter(BearerAuth(stubVerifier{}, false), RateLimit(limiter, "questions"))

	if w := doGet(r, map[string]string{"Authorization": "Bearer good"}); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	w := doGet(r, map[string]string{"Authorization": "Bearer good"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// Anonymous callers are limited per IP, separately from the user
	if w := doGet(r, nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous request: expected 200, got %d", w.Code)
	}
}

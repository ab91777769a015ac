package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"venue-tickets-api/services/auth"
)

type fakeTokens map[string]string

func (f fakeTokens) ValidateToken(token string) (string, error) {
	if token == "expired" {
		return "", auth.ErrTokenExpired
	}
	id, ok := f[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return id, nil
}

func newAuthRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/api/checkout/{id}", CheckoutAuth(fakeTokens{"good": "c1"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(CheckoutIDFromContext(r.Context())))
		}),
	))
	return r
}

func TestCheckoutAuth(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"valid", "/api/checkout/c1", "Bearer good", http.StatusOK, "c1"},
		{"missing header", "/api/checkout/c1", "", http.StatusUnauthorized, "Missing authorization header"},
		{"bad scheme", "/api/checkout/c1", "Basic good", http.StatusUnauthorized, "Invalid authorization header format"},
		{"unknown token", "/api/checkout/c1", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"expired", "/api/checkout/c1", "Bearer expired", http.StatusUnauthorized, "Token expired"},
		{"other checkout", "/api/checkout/c2", "Bearer good", http.StatusForbidden, "Token does not match checkout"},
	}

	router := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestConfigForPath(t *testing.T) {
	prefix, cfg := configForPath("/api/checkout")
	assert.Equal(t, "/api/checkout", prefix)
	assert.Equal(t, 10, cfg.Requests)

	prefix, cfg = configForPath("/api/checkout/abc/messages")
	assert.Equal(t, "/api/checkout/", prefix)
	assert.Equal(t, 120, cfg.Requests)

	prefix, _ = configForPath("/api/coupons/SAVE")
	assert.Equal(t, "/api/coupons/", prefix)

	prefix, cfg = configForPath("/api/price")
	assert.Equal(t, "", prefix)
	assert.Equal(t, defaultRateLimit, cfg)
}

func TestRateLimitKey(t *testing.T) {
	a := httptest.NewRequest(http.MethodPost, "/api/checkout/a/messages", nil)
	a.Header.Set("X-Forwarded-For", "10.0.0.1, 192.168.0.1")
	b := httptest.NewRequest(http.MethodPost, "/api/checkout/b/confirm", nil)
	b.Header.Set("X-Forwarded-For", "10.0.0.1")

	assert.Equal(t, "rate_limit:api/checkout:10.0.0.1", rateLimitKey(a, "/api/checkout/"))
	assert.Equal(t, rateLimitKey(a, "/api/checkout/"), rateLimitKey(b, "/api/checkout/"))

	c := httptest.NewRequest(http.MethodGet, "/api/price", nil)
	c.RemoteAddr = "172.16.0.9:5555"
	assert.Equal(t, "rate_limit:default:172.16.0.9:/api/price", rateLimitKey(c, ""))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeadersMiddleware("https://matara.pro")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/price", nil))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-src https://matara.pro")
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestLocalLimiterFallback(t *testing.T) {
	l := newLocalLimiter()
	config := RateLimitConfig{Requests: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("ip:1.2.3.4", config))
	}
	assert.False(t, l.allow("ip:1.2.3.4", config))
	assert.True(t, l.allow("ip:5.6.7.8", config))
}

func TestLocalLimiterSweepsIdleKeys(t *testing.T) {
	l := newLocalLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	config := RateLimitConfig{Requests: 3, Window: time.Minute}

	l.allow("ip:1.2.3.4", config)
	now = now.Add(20 * time.Minute)
	l.allow("ip:5.6.7.8", config)
	assert.Equal(t, 2, l.size())

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, l.sweep(30*time.Minute))
	assert.Equal(t, 1, l.size())

	// A swept key starts over with a full bucket.
	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("ip:1.2.3.4", config))
	}
	assert.False(t, l.allow("ip:1.2.3.4", config))
}

// middleware/rate_limit.go
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"venue-tickets-api/models"
)

type RateLimiter struct {
	client *redis.Client
	local  *localLimiter
}

const (
	localSweepInterval = 5 * time.Minute
	localIdleTTL       = 30 * time.Minute
)

type localEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// localLimiter is the per-process token bucket used while Redis is unreachable.
type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	now       func() time.Time
	sweepOnce sync.Once
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{limiters: make(map[string]*localEntry), now: time.Now}
}

func (l *localLimiter) allow(key string, config RateLimitConfig) bool {
	l.sweepOnce.Do(func() {
		go l.sweepLoop()
	})

	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(config.Window/time.Duration(config.Requests)), config.Requests)}
		l.limiters[key] = e
	}
	e.last = l.now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// sweep drops buckets untouched for longer than idle.
func (l *localLimiter) sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	removed := 0
	for key, e := range l.limiters {
		if e.last.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

func (l *localLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *localLimiter) sweepLoop() {
	t := time.NewTicker(localSweepInterval)
	defer t.Stop()
	for range t.C {
		l.sweep(localIdleTTL)
	}
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

// Prefix rules, most specific first.
var rateLimitRules = []struct {
	prefix string
	config RateLimitConfig
}{
	{
		prefix: "/api/checkout/",
		config: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
			Message:  "Too many checkout updates. Please slow down.",
		},
	},
	{
		prefix: "/api/checkout",
		config: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute * 5,
			Message:  "Too many checkout attempts. Please wait a few minutes.",
		},
	},
	{
		prefix: "/api/coupons/",
		config: RateLimitConfig{
			Requests: 20,
			Window:   time.Minute,
			Message:  "Too many coupon checks. Please wait a minute.",
		},
	},
}

var defaultRateLimit = RateLimitConfig{
	Requests: 60,
	Window:   time.Minute,
	Message:  "Rate limit exceeded. Please slow down your requests.",
}

const rateLimitScript = `
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local member = ARGV[4]
	local ttl = tonumber(ARGV[5])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start - 1)

	local current_count = redis.call('ZCARD', key)

	if current_count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return {1, limit - current_count - 1}
	else
		return {0, 0}
	end
`

// NewRateLimiter builds a limiter on a shared Redis client.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, local: newLocalLimiter()}
}

func (rl *RateLimiter) RateLimitMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prefix, config := configForPath(r.URL.Path)
			key := rateLimitKey(r, prefix)

			allowed, remaining, resetTime, err := rl.checkRateLimit(r.Context(), key, config)
			if err != nil {
				log.Printf("Rate limit check error, using local limiter: %v", err)
				allowed = rl.local.allow(key, config)
				remaining = 0
				resetTime = time.Now().Add(config.Window)
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				log.Printf("Rate limit exceeded for key: %s, endpoint: %s", key, r.URL.Path)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(resetTime).Seconds())+1, 10))
				w.WriteHeader(http.StatusTooManyRequests)

				json.NewEncoder(w).Encode(models.APIResponse{
					Status:  "error",
					Message: config.Message,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// configForPath returns the matching rule prefix ("" for the default) and its config.
func configForPath(path string) (string, RateLimitConfig) {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	for _, rule := range rateLimitRules {
		if strings.HasPrefix(path, rule.prefix) {
			return rule.prefix, rule.config
		}
	}
	return "", defaultRateLimit
}

// rateLimitKey buckets by client IP and rule, so every checkout id under
// /api/checkout/ shares one bucket per client.
func rateLimitKey(r *http.Request, prefix string) string {
	ip := clientIP(r)
	if prefix == "" {
		return fmt.Sprintf("rate_limit:default:%s:%s", ip, r.URL.Path)
	}
	return fmt.Sprintf("rate_limit:%s:%s", strings.Trim(prefix, "/"), ip)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, resetTime time.Time, err error) {
	now := time.Now()
	windowStart := now.Truncate(config.Window)
	windowEnd := windowStart.Add(config.Window)

	result, err := rl.client.Eval(ctx, rateLimitScript, []string{key},
		windowStart.UnixMilli(), config.Requests, now.UnixMilli(),
		strconv.FormatInt(now.UnixNano(), 10), int(config.Window.Seconds())+1).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected redis result format")
	}

	allowedInt, ok1 := resultSlice[0].(int64)
	remainingInt, ok2 := resultSlice[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, time.Time{}, fmt.Errorf("failed to parse redis result")
	}

	return allowedInt == 1, int(remainingInt), windowEnd, nil
}

// SecurityHeadersMiddleware sets the page's security headers. frameOrigins
// are the only origins the page may embed.
func SecurityHeadersMiddleware(frameOrigins ...string) func(http.Handler) http.Handler {
	csp := fmt.Sprintf("default-src 'self'; frame-src %s; style-src 'self' 'unsafe-inline'", strings.Join(frameOrigins, " "))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", csp)

			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
				w.Header().Set("Pragma", "no-cache")
				w.Header().Set("Expires", "0")
			}

			next.ServeHTTP(w, r)
		})
	}
}

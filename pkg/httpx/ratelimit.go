package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// TokenEndpointLimit is a polite default for talking to a token endpoint.
// Override with: RATELIMIT_TOKEN_REQUESTS, RATELIMIT_TOKEN_WINDOW_SEC, RATELIMIT_TOKEN_BURST
var TokenEndpointLimit = RateLimitConfig{
	RequestsPerWindow: 60,
	Window:            time.Minute,
	Burst:             10,
}

// Enabled reports whether the config describes a usable limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0
}

// Limit converts the window based config into a per second rate.
func (c RateLimitConfig) Limit() rate.Limit {
	if !c.Enabled() {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_TOKEN_REQUESTS, RATELIMIT_TOKEN_WINDOW_SEC, RATELIMIT_TOKEN_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor groups outbound requests for rate limiting purposes.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor groups requests by target host (including port).
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// rateLimiter manages rate limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

// getLimiter retrieves or creates a rate limiter for the given key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets are full again, they have been
// idle long enough that recreating them changes nothing.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitedTransport delays outbound requests so that each key stays
// within its budget. Waiting honours the request context, a cancelled
// context aborts the request before it is sent.
type RateLimitedTransport struct {
	next    http.RoundTripper
	limiter *rateLimiter
	key     KeyExtractor
}

// NewRateLimitedTransport wraps next (http.DefaultTransport when nil).
// Requests are grouped by keyExtractor, HostKeyExtractor when nil.
func NewRateLimitedTransport(next http.RoundTripper, config RateLimitConfig, keyExtractor KeyExtractor) *RateLimitedTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if keyExtractor == nil {
		keyExtractor = HostKeyExtractor
	}

	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &RateLimitedTransport{
		next: next,
		limiter: &rateLimiter{
			rate:        config.Limit(),
			burst:       burst,
			lastCleanup: time.Now(),
		},
		key: keyExtractor,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimitedTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	limiter := t.limiter.getLimiter(t.key(r))

	if !limiter.Allow() {
		log := slogx.FromContext(ctx)
		log.Debug("rate limit: delaying request", "host", r.URL.Host, "path", r.URL.Path)

		if err := limiter.Wait(ctx); err != nil {
			// RoundTrippers own the body, even when nothing is sent
			if r.Body != nil {
				_ = r.Body.Close()
			}
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	return t.next.RoundTrip(r)
}

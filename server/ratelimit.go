package server

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/planb-provider/oauth2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Middleware wraps a handler; the same shape ChainMiddleware takes.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// KeyExtractor groups requests that share a limiter.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor is the address of the peer that opened the connection.
func IPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ForwardedIPKeyExtractor honours X-Forwarded-For only when the peer is one of the
// trusted proxies. It returns the right-most hop that is not itself a trusted proxy.
func ForwardedIPKeyExtractor(trusted []netip.Prefix) KeyExtractor {
	isTrusted := func(raw string) bool {
		addr, err := netip.ParseAddr(strings.TrimSpace(raw))
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		for _, prefix := range trusted {
			if prefix.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := IPKeyExtractor(r)
		if len(trusted) == 0 || !isTrusted(peer) {
			return peer
		}
		hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !isTrusted(hop) {
				return hop
			}
		}
		return peer
	}
}

// ParseTrustedProxies accepts CIDRs and bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if prefix, err := netip.ParsePrefix(v); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return prefixes, nil
}

// FormFieldKeyExtractor reads a form field from the query or a urlencoded body.
func FormFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err == nil {
			return r.FormValue(fieldName)
		}
		return ""
	}
}

// PrincipalKeyExtractor is the username, the client_id, or the HTTP Basic user.
func PrincipalKeyExtractor(r *http.Request) string {
	if username := FormFieldKeyExtractor(oauth2.FieldUsername)(r); username != "" {
		return username
	}
	if clientID := FormFieldKeyExtractor(oauth2.FieldClientID)(r); clientID != "" {
		return clientID
	}
	if user, _, ok := r.BasicAuth(); ok {
		return user
	}
	return ""
}

// RealmPrincipalKeyExtractor keys on realm and principal, so guesses against one
// account share a budget wherever they come from. Anonymous requests are not keyed.
func RealmPrincipalKeyExtractor(r *http.Request) string {
	principal := PrincipalKeyExtractor(r)
	if principal == "" {
		return ""
	}
	return FormFieldKeyExtractor(oauth2.FieldRealm)(r) + "|" + principal
}

type rateLimiter struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters with a full bucket, at most every five minutes.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware answers 429 slow_down once a key exceeds its budget.
func RateLimitMiddleware(cfg RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	if cfg.RequestsPerWindow <= 0 || cfg.Window <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}

	rl := &rateLimiter{
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := keyExtractor(r)
			if key == "" {
				next(w, r)
				return
			}

			limiter := rl.getLimiter(key)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(delay.Seconds()), 1)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", cfg.Window.String())

				log.Warn().
					Str("key", key).
					Str("path", r.URL.Path).
					Int("retry_after", retryAfter).
					Msg("rate limit exceeded")

				writeJSONError(w, oauth2.ErrorSlowDown, "Too many requests. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next(w, r)
		}
	}
}

package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/loxya/loxya/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket profile.
type RateLimitConfig struct {
	// Name labels log lines and metrics.
	Name string
	// RequestsPerWindow is the sustained number of requests per Window.
	RequestsPerWindow int
	Window            time.Duration
	// Burst is the bucket size.
	Burst int
}

// Built-in profiles. Strict guards credential checks, Moderate guards
// authenticated writes and Public covers cheap reads.
var (
	StrictLimit = RateLimitConfig{
		Name:              "strict",
		RequestsPerWindow: 5,
		Window:            time.Minute,
		Burst:             5,
	}
	ModerateLimit = RateLimitConfig{
		Name:              "moderate",
		RequestsPerWindow: 30,
		Window:            time.Minute,
		Burst:             30,
	}
	PublicLimit = RateLimitConfig{
		Name:              "public",
		RequestsPerWindow: 600,
		Window:            time.Minute,
		Burst:             600,
	}
)

var rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "loxya_http_rate_limited_total",
	Help: "Requests rejected by the rate limiter, by profile.",
}, []string{"profile"})

// ParseRateLimitFromEnv overrides def with RATELIMIT_{prefix}_REQUESTS,
// RATELIMIT_{prefix}_WINDOW_SEC and RATELIMIT_{prefix}_BURST. Invalid or
// non-positive values are ignored.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := positiveEnvInt("RATELIMIT_" + prefix + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnvInt("RATELIMIT_" + prefix + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnvInt("RATELIMIT_" + prefix + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// KeyExtractor groups requests into rate limit buckets. An empty key
// bypasses the limiter.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the peer IP of the connection. Forwarding headers
// are ignored since any client can set them.
func IPKeyExtractor(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIPKeyExtractor returns the client IP reported by a fronting
// proxy in X-Forwarded-For or X-Real-IP, falling back to the peer IP. Only
// use it when every request arrives through a proxy that overwrites those
// headers.
func ForwardedIPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return IPKeyExtractor(r)
}

// ClientIPKeyExtractor picks ForwardedIPKeyExtractor behind a trusted proxy
// and IPKeyExtractor otherwise.
func ClientIPKeyExtractor(trustProxy bool) KeyExtractor {
	if trustProxy {
		return ForwardedIPKeyExtractor
	}
	return IPKeyExtractor
}

// UserIDKeyExtractor returns the authenticated user id, or "".
func UserIDKeyExtractor(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if k := extract(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketSet holds one limiter per key and evicts keys idle for longer
// than the profile window.
type bucketSet struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

func newBucketSet(cfg RateLimitConfig) *bucketSet {
	idle := cfg.Window
	if idle < time.Minute {
		idle = time.Minute
	}
	return &bucketSet{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:     cfg.Burst,
		idle:      idle,
		lastSweep: time.Now(),
	}
}

func (s *bucketSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > s.idle {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > s.idle {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// RateLimitMiddleware rejects requests with 429 once the bucket selected
// by key is empty.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyExtractor) Middleware {
	set := newBucketSet(cfg)
	profile := cfg.Name
	if profile == "" {
		profile = "custom"
	}
	limitHeader := strconv.Itoa(cfg.RequestsPerWindow)
	windowHeader := cfg.Window.String()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			k := key(r)
			if k == "" {
				log.Warn("rate limit key unavailable, allowing request", "profile", profile)
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			limiter := set.get(k, now)
			if limiter.AllowN(now, 1) {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.ReserveN(now, 1)
			retryAfter := max(int(res.DelayFrom(now).Seconds()), 1)
			res.CancelAt(now)

			rateLimitedTotal.WithLabelValues(profile).Inc()
			log.Warn("rate limit exceeded",
				"profile", profile,
				"key", k,
				"retry_after", retryAfter,
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", limitHeader)
			w.Header().Set("X-RateLimit-Window", windowHeader)
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP limits by client IP. trustProxy selects whether
// forwarding headers identify the client.
func RateLimitByIP(cfg RateLimitConfig, trustProxy bool) Middleware {
	return RateLimitMiddleware(cfg, ClientIPKeyExtractor(trustProxy))
}

// RateLimitByUser limits by authenticated user, falling back to the
// client IP for anonymous requests.
func RateLimitByUser(cfg RateLimitConfig, trustProxy bool) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":",
		UserIDKeyExtractor,
		ClientIPKeyExtractor(trustProxy),
	))
}

package httpx_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loxya/loxya/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(requestFrom("192.168.1.1:12345")))
	})

	t.Run("ignores forwarding headers", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("falls back to raw RemoteAddr without port", func(t *testing.T) {
		require.Equal(t, "unix-socket", httpx.IPKeyExtractor(requestFrom("unix-socket")))
	})
}

func TestForwardedIPKeyExtractor(t *testing.T) {
	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.ForwardedIPKeyExtractor(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.ForwardedIPKeyExtractor(req))
	})

	t.Run("falls back to RemoteAddr", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", httpx.ForwardedIPKeyExtractor(requestFrom("192.168.1.1:12345")))
	})
}

func TestRateLimitByIP_ForwardedHeaders(t *testing.T) {
	cfg := httpx.RateLimitConfig{Name: "test", RequestsPerWindow: 2, Window: time.Minute, Burst: 2}

	send := func(h http.Handler, xff string) int {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("rotating X-Forwarded-For does not reset the bucket", func(t *testing.T) {
		h := httpx.RateLimitByIP(cfg, false)(okHandler())
		require.Equal(t, http.StatusOK, send(h, "203.0.113.1"))
		require.Equal(t, http.StatusOK, send(h, "203.0.113.2"))
		require.Equal(t, http.StatusTooManyRequests, send(h, "203.0.113.3"))
	})

	t.Run("trusted proxy buckets by forwarded client", func(t *testing.T) {
		h := httpx.RateLimitByIP(cfg, true)(okHandler())
		require.Equal(t, http.StatusOK, send(h, "203.0.113.1"))
		require.Equal(t, http.StatusOK, send(h, "203.0.113.1"))
		require.Equal(t, http.StatusTooManyRequests, send(h, "203.0.113.1"))
		require.Equal(t, http.StatusOK, send(h, "203.0.113.2"))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	extract := httpx.CompositeKeyExtractor(":", httpx.UserIDKeyExtractor, httpx.IPKeyExtractor)

	t.Run("combines user and ip", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req = req.WithContext(httpx.ContextWithUserID(req.Context(), "42"))
		require.Equal(t, "42:192.168.1.1", extract(req))
	})

	t.Run("skips empty values", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", extract(requestFrom("192.168.1.1:12345")))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allows requests under limit", func(t *testing.T) {
		cfg := httpx.RateLimitConfig{RequestsPerWindow: 5, Window: time.Second, Burst: 5}
		h := httpx.RateLimitMiddleware(cfg, httpx.IPKeyExtractor)(okHandler())

		for i := range 5 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom("192.168.1.1:12345"))
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		cfg := httpx.RateLimitConfig{Name: "test", RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
		h := httpx.RateLimitMiddleware(cfg, httpx.IPKeyExtractor)(okHandler())

		for range 2 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom("192.168.1.1:12345"))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.1:12345"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("keys are independent", func(t *testing.T) {
		cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
		h := httpx.RateLimitMiddleware(cfg, httpx.IPKeyExtractor)(okHandler())

		for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom(addr))
			require.Equal(t, http.StatusOK, rec.Code, addr)
		}
	})

	t.Run("empty key bypasses limiter", func(t *testing.T) {
		cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
		none := func(*http.Request) string { return "" }
		h := httpx.RateLimitMiddleware(cfg, none)(okHandler())

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom("10.0.0.1:1"))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("refills after the window", func(t *testing.T) {
		cfg := httpx.RateLimitConfig{RequestsPerWindow: 10, Window: 100 * time.Millisecond, Burst: 1}
		h := httpx.RateLimitMiddleware(cfg, httpx.IPKeyExtractor)(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.9:1"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.9:1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		time.Sleep(30 * time.Millisecond)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.9:1"))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimitByUser(t *testing.T) {
	h := httpx.RateLimitByUser(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, false)(okHandler())

	asUser := func(id string) *http.Request {
		req := requestFrom("10.0.0.1:1")
		return req.WithContext(httpx.ContextWithUserID(context.Background(), id))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, asUser("1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, asUser("2"))
	require.Equal(t, http.StatusOK, rec.Code, "different user from same ip has own bucket")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, asUser("1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitProfiles(t *testing.T) {
	for _, cfg := range []httpx.RateLimitConfig{httpx.StrictLimit, httpx.ModerateLimit, httpx.PublicLimit} {
		t.Run(cfg.Name, func(t *testing.T) {
			require.Positive(t, cfg.RequestsPerWindow)
			require.Positive(t, cfg.Window)
			require.Positive(t, cfg.Burst)
		})
	}

	require.Less(t, httpx.StrictLimit.RequestsPerWindow, httpx.ModerateLimit.RequestsPerWindow)
	require.Less(t, httpx.ModerateLimit.RequestsPerWindow, httpx.PublicLimit.RequestsPerWindow)
}

func TestRateLimitHeaders(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := httpx.RateLimitMiddleware(cfg, httpx.IPKeyExtractor)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("192.168.1.1:12345"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("192.168.1.1:12345"))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func BenchmarkRateLimitManyIPs(b *testing.B) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1000000, Window: time.Minute, Burst: 1000}
	h := httpx.RateLimitMiddleware(cfg, httpx.IPKeyExtractor)(okHandler())

	for i := 0; b.Loop(); i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(fmt.Sprintf("192.168.%d.%d:12345", i%255, (i/255)%255)))
	}
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{Name: "test", RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	t.Run("no env vars uses defaults", func(t *testing.T) {
		require.Equal(t, def, httpx.ParseRateLimitFromEnv("TEST", def))
	})

	t.Run("overrides every field", func(t *testing.T) {
		t.Setenv("RATELIMIT_TEST_REQUESTS", "50")
		t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "120")
		t.Setenv("RATELIMIT_TEST_BURST", "7")

		cfg := httpx.ParseRateLimitFromEnv("TEST", def)
		require.Equal(t, 50, cfg.RequestsPerWindow)
		require.Equal(t, 120*time.Second, cfg.Window)
		require.Equal(t, 7, cfg.Burst)
		require.Equal(t, "test", cfg.Name)
	})

	t.Run("ignores invalid values", func(t *testing.T) {
		t.Setenv("RATELIMIT_TEST_REQUESTS", "lots")
		t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "-5")
		t.Setenv("RATELIMIT_TEST_BURST", "0")

		require.Equal(t, def, httpx.ParseRateLimitFromEnv("TEST", def))
	})
}

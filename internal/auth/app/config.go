package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	httpapi "github.com/loxya/loxya/internal/auth/http"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/jwtx"
)

type Config struct {
	JWTSecret     string // Inline signing secret (LOXYA_JWT_SECRET)
	JWTSecretFile string // File holding the signing secret (LOXYA_JWT_SECRET_FILE)

	SessionLifetime       time.Duration // Session token lifetime (default: 12h)
	PasswordResetLifetime time.Duration // Reset token lifetime (default: 30m)

	AuthHeader string // Header carrying "Bearer <token>" (default: Authorization)
	AuthCookie string // Cookie carrying the token on page requests (default: Authorization)
	BaseURL    string // Public URL; an https URL marks cookies Secure (default: http://localhost:8080)
	Headless   bool   // Never set or clear cookies (default: false)
	APIPrefix  string // Requests under this path never read the cookie (default: /api)

	DatabaseFile   string // Path to SQLite database file (default: ./loxya.db)
	PepperFile     string // Path to file containing pepper for password hashing (default: ./pepper)
	TOTPIssuer     string // Issuer shown by authenticator apps (default: Loxya)
	BootstrapToken string // Optional: token required to perform bootstrap

	RateLimits httpapi.RateLimits

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		JWTSecret:     os.Getenv("LOXYA_JWT_SECRET"),
		JWTSecretFile: os.Getenv("LOXYA_JWT_SECRET_FILE"),

		SessionLifetime: time.Duration(
			getEnvIntOrDefault("LOXYA_SESSION_LIFETIME_HOURS", int(jwtx.DefaultSessionLifetime/time.Hour)),
		) * time.Hour,
		PasswordResetLifetime: getEnvDurationOrDefault("LOXYA_PASSWORD_RESET_LIFETIME", jwtx.DefaultPasswordResetLifetime),

		AuthHeader: getEnvOrDefault("LOXYA_AUTH_HEADER", httpx.DefaultAuthHeader),
		AuthCookie: getEnvOrDefault("LOXYA_AUTH_COOKIE", "Authorization"),
		BaseURL:    getEnvOrDefault("LOXYA_BASE_URL", "http://localhost:8080"),
		Headless:   getEnvBoolOrDefault("LOXYA_HEADLESS", false),
		APIPrefix:  getEnvOrDefault("LOXYA_API_PREFIX", "/api"),

		DatabaseFile:   getEnvOrDefault("LOXYA_DATABASE_FILE", "loxya.db"),
		PepperFile:     getEnvOrDefault("LOXYA_PEPPER_FILE", "pepper"),
		TOTPIssuer:     getEnvOrDefault("LOXYA_TOTP_ISSUER", "Loxya"),
		BootstrapToken: os.Getenv("BOOTSTRAP_TOKEN"), // Optional: if set, required to perform bootstrap

		RateLimits: httpapi.RateLimits{
			Strict:   httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit),
			Moderate: httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit),
			Public:   httpx.ParseRateLimitFromEnv("PUBLIC", httpx.PublicLimit),

			TrustProxy: getEnvBoolOrDefault("LOXYA_TRUST_PROXY", false),
		},

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Secure reports whether the service is served over TLS.
func (c Config) Secure() bool {
	return strings.HasPrefix(strings.ToLower(c.BaseURL), "https://")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

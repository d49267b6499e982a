package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/loxya/loxya/api/loxya" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits are the profiles applied to the routes.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Public   httpx.RateLimitConfig

	// TrustProxy keys anonymous limits on X-Forwarded-For/X-Real-IP
	// instead of the peer address.
	TrustProxy bool
}

// DefaultRateLimits returns the built-in profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Public:   httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       RateLimits

	store  store.Store
	signer SignerCheck

	Sessions             *service.SessionService
	LoginService         *service.LoginService
	PasswordResetService *service.PasswordResetService
	MFAService           *service.MFAService
	BootstrapService     *service.BootstrapService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	signer SignerCheck,
	limits RateLimits,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		store:        st,
		signer:       signer,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerPasswordReset()
	r.registerMFA()
	r.registerBootstrap()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Loxya Session API
//	@version		0.1.0
//	@description	Session authentication for Loxya. Session tokens are HS256 JWTs bound to the User-Agent and Accept-Language of the client that logged in.
//	@description
//	@description				API requests must send the token as "Authorization: Bearer {token}". Page requests may use the session cookie instead.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// requireSession wraps h with session authentication and a per-user limit.
func (r *Router) requireSession(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		RequireSession(r.Sessions),
		httpx.RateLimitByUser(limit, r.limits.TrustProxy),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		LoginService: r.LoginService,
		Sessions:     r.Sessions,
	}

	// POST /api/session - strict rate limit by IP (credential guessing)
	r.Mux.Handle("POST /api/session",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(r.limits.Strict, r.limits.TrustProxy),
		),
	)
	r.Mux.Handle("GET /api/session", r.requireSession(h.HandleGet, r.limits.Public))
	r.Mux.Handle("DELETE /api/session",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			httpx.RateLimitByIP(r.limits.Moderate, r.limits.TrustProxy),
		),
	)
	r.Mux.Handle("GET /logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.limits.Moderate, r.limits.TrustProxy),
		),
	)
}

func (r *Router) registerPasswordReset() {
	h := &PasswordResetHandler{PasswordResetService: r.PasswordResetService}

	r.Mux.Handle("POST /api/password-reset",
		httpx.Chain(http.HandlerFunc(h.HandleRequest),
			httpx.RateLimitByIP(r.limits.Strict, r.limits.TrustProxy),
		),
	)
	r.Mux.Handle("POST /api/password-reset/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.RateLimitByIP(r.limits.Strict, r.limits.TrustProxy),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /api/me/totp", r.requireSession(h.HandleEnroll, r.limits.Moderate))
	// verify and remove accept codes, strict to prevent brute force
	r.Mux.Handle("POST /api/me/totp/verify", r.requireSession(h.HandleVerify, r.limits.Strict))
	r.Mux.Handle("DELETE /api/me/totp", r.requireSession(h.HandleRemove, r.limits.Strict))
}

func (r *Router) registerBootstrap() {
	bootstrapHandler := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /api/bootstrap",
		httpx.Chain(bootstrapHandler,
			httpx.RateLimitByIP(r.limits.Strict, r.limits.TrustProxy),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Public, r.limits.TrustProxy),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer),
			httpx.RateLimitByIP(r.limits.Public, r.limits.TrustProxy),
		),
	)
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}

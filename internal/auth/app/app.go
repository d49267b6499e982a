package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/loxya/loxya/internal/auth/http"
	"github.com/loxya/loxya/internal/auth/service"
	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/internal/auth/store/drivers/sqlite"
	"github.com/loxya/loxya/pkg/cryptox"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/jwtx"
	"github.com/loxya/loxya/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the session service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	codec     *jwtx.Codec
	passwords *cryptox.PasswordHasher

	// Services
	sessions             *service.SessionService
	loginService         *service.LoginService
	passwordResetService *service.PasswordResetService
	mfaService           *service.MFAService
	bootstrapService     *service.BootstrapService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "loxya",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Without a usable secret nothing else is started.
	codec, err := InitCodec(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session signing: %w", err)
	}
	app.codec = codec

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.passwords = cryptox.NewPasswordHasher(pepper)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("loxya starting",
		"port", app.cfg.Port,
		"base_url", app.cfg.BaseURL,
		"headless", app.cfg.Headless,
		"bootstrap_enabled", app.cfg.BootstrapToken != "",
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down loxya...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("loxya stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.sessions = &service.SessionService{
		Codec:        app.codec,
		Users:        app.db.Users(),
		Lifetime:     app.cfg.SessionLifetime,
		HeaderName:   app.cfg.AuthHeader,
		CookieName:   app.cfg.AuthCookie,
		Secure:       app.cfg.Secure(),
		Headless:     app.cfg.Headless,
		IsAPIRequest: httpx.APIPrefixClassifier(app.cfg.APIPrefix),
	}

	app.loginService = &service.LoginService{
		Store:     app.db,
		Passwords: app.passwords,
		Sessions:  app.sessions,
	}
	app.passwordResetService = &service.PasswordResetService{
		Store:     app.db,
		Codec:     app.codec,
		Passwords: app.passwords,
		// Tokens are logged in dev only.
		Mailer:   service.LogMailer{ShowToken: app.cfg.Env == "dev"},
		Lifetime: app.cfg.PasswordResetLifetime,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.TOTPIssuer,
	}
	app.bootstrapService = &service.BootstrapService{
		Store:     app.db,
		Passwords: app.passwords,
		Token:     app.cfg.BootstrapToken,
	}
}

// signerCheck issues a throwaway token to prove the codec can sign.
func (app *Application) signerCheck() error {
	_, err := app.codec.Generate(jwtx.ScopeAuth, app.codec.Now().Add(time.Minute), jwtx.Payload{}, "")
	return err
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.signerCheck,
		app.cfg.RateLimits,
		app.logger,
	)

	// Wire services to router
	router.Sessions = app.sessions
	router.LoginService = app.loginService
	router.PasswordResetService = app.passwordResetService
	router.MFAService = app.mfaService
	router.BootstrapService = app.bootstrapService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

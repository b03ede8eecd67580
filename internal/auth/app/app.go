package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/accounts/internal/auth/http"
	"github.com/aussiebroadwan/accounts/internal/auth/mailer"
	"github.com/aussiebroadwan/accounts/internal/auth/metrics"
	"github.com/aussiebroadwan/accounts/internal/auth/provider/google"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/accounts/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// startupTimeout bounds connecting to the key-value store.
const startupTimeout = 15 * time.Second

// Option overrides a collaborator, mostly for tests.
type Option func(*Application)

// WithMailer replaces the configured EmailSender.
func WithMailer(m service.EmailSender) Option {
	return func(app *Application) { app.mailer = m }
}

// WithIdentityProvider replaces the Google provider.
func WithIdentityProvider(p service.IdentityProvider) Option {
	return func(app *Application) { app.provider = p }
}

// WithLogOutput sends logs somewhere other than stdout.
func WithLogOutput(w io.Writer) Option {
	return func(app *Application) { app.logOutput = w }
}

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg       Config
	logger    *slog.Logger
	logOutput io.Writer

	// Core dependencies
	kv       store.Store
	users    *sqlite.Store
	metrics  *metrics.Metrics
	mailer   service.EmailSender
	provider service.IdentityProvider

	// Services
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService
	housekeepingRunning bool

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}

	app.logger = slogx.New(slogx.Config{
		Service: "accounts-auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  app.logOutput,
	})
	app.metrics = metrics.New()

	// Set pepper path for code hashing
	cryptox.SetPepperPath(cfg.OtpPepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load otp pepper: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initUsers(); err != nil {
		_ = app.kv.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler with every route and middleware applied.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.StartHousekeeping()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"google", app.provider != nil,
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
			_ = app.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// StartHousekeeping starts the background cleanup worker. Run calls it;
// callers that serve Handler themselves may too.
func (app *Application) StartHousekeeping() {
	if app.housekeepingRunning {
		return
	}
	app.housekeepingRunning = true
	app.housekeepingService.Start()
}

// Close stops housekeeping and releases the stores. It does not touch the
// HTTP server.
func (app *Application) Close() error {
	if app.housekeepingRunning {
		app.housekeepingService.Stop()
	}
	return app.close()
}

func (app *Application) close() error {
	var errs []error
	if app.users != nil {
		if err := app.users.Close(); err != nil {
			app.logger.Error("error closing user database", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.kv.Close(); err != nil {
		app.logger.Error("error closing key-value store", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initStore connects the key-value store behind sessions, challenges and
// OAuth state.
func (app *Application) initStore(ctx context.Context) error {
	switch app.cfg.StoreDriver {
	case StoreDriverMemory:
		app.kv = memory.New()
		app.logger.Warn("using in-process memory store; state is lost on restart and not shared between instances")

	default:
		kv, err := redis.New(ctx, redis.Config{
			URL:            app.cfg.RedisURL,
			PoolSize:       app.cfg.RedisPoolSize,
			DialTimeout:    app.cfg.RedisConnectTimeout,
			CommandTimeout: app.cfg.RedisCommandTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.kv = kv
		app.logger.Info("connected to redis", "pool_size", app.cfg.RedisPoolSize)
	}
	return nil
}

// initUsers opens the user directory and applies migrations
func (app *Application) initUsers() error {
	users, err := sqlite.NewStore(app.cfg.UserDatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize user database: %w", err)
	}
	app.users = users

	app.logger.Info("user database migrations applied successfully", "file", app.cfg.UserDatabaseFile)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	tokenCfg := service.TokenConfig{
		Issuer:     app.cfg.JWTIssuer,
		Audience:   app.cfg.JWTAudience,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		Leeway:     app.cfg.Leeway,
	}
	signer, verifier, err := InitAuthKeys(app.cfg, tokenCfg.VerifyOptions(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	tokens, err := service.NewTokenService(signer, verifier, tokenCfg)
	if err != nil {
		return err
	}

	if err := app.initMailer(); err != nil {
		return err
	}
	if err := app.initProvider(); err != nil {
		return err
	}

	retry := service.NewStoreRetry(app.cfg.StoreMaxRetries)
	otps := service.NewOtpChallengeStore(app.kv, app.cfg.Otp, retry, app.metrics)

	app.authService = &service.AuthService{
		Tokens:             tokens,
		Sessions:           service.NewSessionStore(app.kv.Sessions(), retry, app.metrics),
		Otps:               otps,
		States:             service.NewOAuthStateCache(app.kv.OAuthStates(), app.cfg.OAuthStateTTL, retry, app.metrics),
		Users:              app.users,
		Mailer:             app.mailer,
		Provider:           app.provider,
		DefaultRedirectURI: app.cfg.GoogleRedirectURI,
	}

	app.housekeepingService = service.NewHousekeepingService(
		otps,
		app.logger.With("component", "housekeeping"),
		app.metrics,
		app.cfg.HousekeepingInterval,
	)

	app.router = httpapi.NewRouter(app.authService, signer, BuildVersion, app.logger, app.metrics)
	return nil
}

func (app *Application) initMailer() error {
	if app.mailer != nil {
		return nil
	}
	if app.cfg.SMTPHost == "" {
		if app.cfg.Env == "prod" {
			app.logger.Warn("SMTP_HOST is not set; sign-in codes will only be logged")
		}
		app.mailer = mailer.LogSender{Logger: app.logger.With("component", "mailer")}
		return nil
	}

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
		TLSMode:  app.cfg.SMTPTLSMode,
	}, app.logger.With("component", "mailer"))
	if err != nil {
		return fmt.Errorf("%w: %w", service.ErrConfiguration, err)
	}
	app.mailer = sender
	return nil
}

func (app *Application) initProvider() error {
	if app.provider != nil || !app.cfg.GoogleEnabled() {
		return nil
	}

	p, err := google.New(google.Config{
		ClientID:     app.cfg.GoogleClientID,
		ClientSecret: app.cfg.GoogleClientSecret,
		RedirectURI:  app.cfg.GoogleRedirectURI,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", service.ErrConfiguration, err)
	}
	app.provider = p
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	app.router.Store = app.kv
	app.router.Users = app.users
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

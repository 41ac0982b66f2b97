package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/chatterhq/gateway/internal/gateway/http"
	"github.com/chatterhq/gateway/internal/gateway/metrics"
	"github.com/chatterhq/gateway/internal/gateway/provider"
	"github.com/chatterhq/gateway/internal/gateway/proxy"
	"github.com/chatterhq/gateway/internal/gateway/service"
	"github.com/chatterhq/gateway/internal/gateway/store"
	"github.com/chatterhq/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/chatterhq/gateway/pkg/cryptox"
	"github.com/chatterhq/gateway/pkg/jwtx"
	"github.com/chatterhq/gateway/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	collector  *metrics.Collector

	tokenService        *service.TokenService
	authService         *service.AuthService
	identityService     *service.IdentityService
	oauthService        *service.OAuthService
	profileService      *service.ProfileService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		collector: metrics.NewCollector(),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  cfg.Issuer,
		NumKeys: cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize signing keys: %w", err)
	}
	app.keyManager = keyManager

	app.initServices()
	if err := app.initHTTP(); err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown drains in-flight requests, stops the background workers, and
// closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied")
	return nil
}

func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		KeyManager: app.keyManager,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
		SessionTTL: app.cfg.SessionTTL,
	}
	app.authService = &service.AuthService{
		Store:  app.db,
		Tokens: app.tokenService,
	}
	app.identityService = &service.IdentityService{Store: app.db}

	pkce := service.NewPKCEService(app.cfg.ChallengeTTL, nil)
	app.oauthService = &service.OAuthService{
		Providers: app.buildProviders(),
		PKCE:      pkce,
		Identity:  app.identityService,
		Tokens:    app.tokenService,
	}

	app.profileService = &service.ProfileService{Store: app.db}
	app.userService = &service.UserService{Store: app.db}
	app.housekeepingService = service.NewHousekeepingService(
		pkce,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// buildProviders registers every provider that has credentials
// configured.
func (app *Application) buildProviders() *provider.Registry {
	var providers []provider.Provider

	if app.cfg.Google.ClientID != "" {
		providers = append(providers, provider.NewGoogle(app.cfg.Google))
	}
	if app.cfg.GitHub.ClientID != "" {
		providers = append(providers, provider.NewGitHub(app.cfg.GitHub))
	}
	if app.cfg.Facebook.ClientID != "" {
		providers = append(providers, provider.NewFacebook(app.cfg.Facebook))
	}

	reg := provider.NewRegistry(providers...)
	app.logger.Info("oauth providers configured", "providers", reg.IDs())
	return reg
}

func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.collector,
		app.logger,
	)

	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.OAuthService = app.oauthService
	router.IdentitySvc = app.identityService
	router.ProfileService = app.profileService
	router.UserService = app.userService
	router.FrontendURL = app.cfg.FrontendURL

	upstreams, err := app.buildUpstreams()
	if err != nil {
		return err
	}
	router.Upstreams = upstreams
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

func (app *Application) buildUpstreams() ([]proxy.Upstream, error) {
	specs := []struct {
		name string
		raw  string
	}{
		{"ai", app.cfg.AIServiceURL},
		{"data", app.cfg.DataServiceURL},
		{"personalization", app.cfg.PersonalizationServiceURL},
	}

	var out []proxy.Upstream
	for _, s := range specs {
		if s.raw == "" {
			app.logger.Warn("upstream disabled, no URL configured", "upstream", s.name)
			continue
		}
		target, err := url.Parse(s.raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s upstream URL: %w", s.name, err)
		}
		out = append(out, proxy.Upstream{Name: s.name, Target: target})
	}
	return out, nil
}

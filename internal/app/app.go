package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"forumoauth/internal/config"
	"forumoauth/internal/oauth2client"
	"forumoauth/internal/scheduler"
	"forumoauth/internal/session"
	"forumoauth/internal/storage"
	"forumoauth/internal/tokens"
)

// Application holds all the major components of the service.
type Application struct {
	Config        *config.Config
	Log           zerolog.Logger
	Storage       *storage.SQLiteStorage
	Controller    *tokens.Controller
	Sweeper       *scheduler.Sweeper
	SessionStore  session.Store
	HTTPServer    *http.Server
	MetricsServer *http.Server
}

// New creates and initializes a new Application instance.
func New(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	store, err := storage.NewSQLiteStorage(cfg.DBPath, []byte(cfg.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	exchanger := oauth2client.New(oauth2client.Config{
		ClientID:     cfg.OAuth2.ClientID,
		ClientSecret: cfg.OAuth2.ClientSecret,
		AuthorizeURL: cfg.OAuth2.AuthorizeURL,
		TokenURL:     cfg.OAuth2.TokenURL,
		TokenMethod:  cfg.OAuth2.TokenMethod,
		Timeout:      cfg.OAuth2.RequestTimeout.Duration,
	}, log.With().Str("component", "oauth2client").Logger())

	controller := tokens.NewController(store, exchanger,
		log.With().Str("component", "tokens").Logger())

	sweeper := scheduler.NewSweeper(store, controller,
		func() bool { return cfg.OAuth2.Enabled },
		log.With().Str("component", "sweeper").Logger())

	app := &Application{
		Config:       cfg,
		Log:          log,
		Storage:      store,
		Controller:   controller,
		Sweeper:      sweeper,
		SessionStore: session.NewInMemoryStore(),
	}

	app.HTTPServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: app.router(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	app.MetricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	return app, nil
}

// router builds the main HTTP routes.
func (a *Application) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)

	api := r.PathPrefix("/oauth2").Subrouter()
	api.Use(a.requireAuth)
	api.HandleFunc("/refresh", a.handleRefresh).Methods(http.MethodPost)

	return r
}

// Start begins the application's services.
func (a *Application) Start(ctx context.Context) error {
	a.Log.Info().Msg("starting application services")

	a.Sweeper.Start()

	go func() {
		a.Log.Info().Str("addr", a.MetricsServer.Addr).Msg("starting metrics server")
		if err := a.MetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Log.Fatal().Err(err).Msg("metrics server ListenAndServe")
		}
	}()

	go func() {
		a.Log.Info().Str("addr", a.HTTPServer.Addr).Msg("starting HTTP server")
		if err := a.HTTPServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Log.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	return nil
}

// Stop gracefully shuts down the application's services.
func (a *Application) Stop(ctx context.Context) error {
	a.Log.Info().Msg("stopping application services")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		a.Log.Error().Err(err).Msg("HTTP server shutdown")
	}
	if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
		a.Log.Error().Err(err).Msg("metrics server shutdown")
	}

	a.Sweeper.Stop()
	a.Log.Info().Msg("sweeper stopped")

	if err := a.Storage.Close(); err != nil {
		a.Log.Error().Err(err).Msg("closing storage")
	}

	a.Log.Info().Msg("application stopped")
	return nil
}

// Package runtime assembles the catalog process: configuration, storage
// engine, services and the HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/hbnb-network/catalog_layer/internal/app/httpapi"
	"github.com/hbnb-network/catalog_layer/internal/app/metrics"
	"github.com/hbnb-network/catalog_layer/internal/app/search"
	"github.com/hbnb-network/catalog_layer/internal/app/services/catalog"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/internal/app/storage/memory"
	"github.com/hbnb-network/catalog_layer/internal/app/storage/postgres"
	"github.com/hbnb-network/catalog_layer/internal/config"
	"github.com/hbnb-network/catalog_layer/internal/middleware"
	"github.com/hbnb-network/catalog_layer/internal/platform/migrations"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

const (
	pingTimeout     = 5 * time.Second
	shutdownTimeout = 10 * time.Second
	cleanupInterval = time.Minute
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	engine  storage.Engine
	limiter *middleware.RateLimiter
	server  *http.Server
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(ctx, cfg, logger.New(cfg.LoggerConfig()))
}

// New builds an application from an explicit configuration. The storage
// engine is opened and loaded before New returns.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = logger.NewDefault("catalog")
	}

	app := &Application{cfg: cfg, log: log}
	engine, err := app.openEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("configure storage: %w", err)
	}
	app.engine = storage.Instrument(engine, metrics.RecordCommit)

	if cfg.RateLimit.RPS > 0 {
		app.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log.Named("ratelimit"))
	}

	searchEngine := search.New(log.Named("search"), metrics.RecordSearch)
	svc := catalog.New(searchEngine, log.Named("catalog"))
	handler := httpapi.NewHandler(httpapi.Options{
		Engine:      app.engine,
		Catalog:     svc,
		Logger:      log.Named("httpapi"),
		CORSOrigins: cfg.Origins(),
		RateLimiter: app.limiter,
	})

	app.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app, nil
}

// Engine returns the instrumented storage engine.
func (a *Application) Engine() storage.Engine { return a.engine }

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler { return a.server.Handler }

// Run starts the HTTP server and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.limiter != nil {
		a.limiter.StartCleanup(ctx, cleanupInterval)
	}

	go func() {
		a.log.WithField("storage", a.engine.Name()).Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and releases storage.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := a.engine.Close(); err != nil {
		a.log.WithError(err).Warn("error closing storage engine")
	}
	return nil
}

func (a *Application) openEngine(ctx context.Context) (storage.Engine, error) {
	if !a.cfg.UseDatabase() {
		store, err := memory.Open(ctx, a.cfg.Storage.FilePath, memory.WithLogger(a.log.Named("storage.memory")))
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	db, err := openDatabase(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	store := postgres.New(db, a.log.Named("storage.postgres"))
	if err := store.Reload(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

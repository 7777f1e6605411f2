// Package server initializes and runs the CardBinder application server.
// It wires the local cache, the remote store, the catalog client, avatar
// storage, and the sync engine together, and handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/avolkov/cardbinder/internal/avatars"
	"github.com/avolkov/cardbinder/internal/cache"
	"github.com/avolkov/cardbinder/internal/catalog"
	"github.com/avolkov/cardbinder/internal/logging"
	"github.com/avolkov/cardbinder/internal/remote"
	"github.com/avolkov/cardbinder/internal/server/api"
	"github.com/avolkov/cardbinder/internal/server/config"
	syncengine "github.com/avolkov/cardbinder/internal/sync"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	cache   *cache.Store
	remote  *remote.PostgresStore
	engine  *syncengine.Engine
	handler *api.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	localCache, err := cache.Open(ctx, c.CacheDSN, logger, c.SearchCacheLifetime, c.ItemCacheLifetime)
	if err != nil {
		return nil, fmt.Errorf("cache init error: %w", err)
	}

	// The remote store may be down at startup; that is the whole point of the
	// offline mode. Migrations are deferred until the first successful probe.
	remoteStore, err := remote.NewPostgresStore(ctx, c.DatabaseDSN)
	if remoteStore == nil {
		return nil, fmt.Errorf("remote store init error: %w", err)
	}
	if err != nil {
		logger.Warn(ctx, "remote store unavailable at startup, continuing offline", "error", err)
	}

	avatarService, err := avatars.NewService(ctx, avatars.Config{
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		Endpoint:  c.S3BaseEndpoint,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("avatar storage init error: %w", err)
	}

	engine := syncengine.New(remoteStore, localCache, logger)
	engine.SetProbeTimeout(c.ProbeTimeout)

	catalogClient := catalog.NewClient(c.CatalogBaseURL, c.CatalogAPIKey, localCache, logger)

	return &App{
		config:  c,
		logger:  logger,
		cache:   localCache,
		remote:  remoteStore,
		engine:  engine,
		handler: api.NewHandler(engine, catalogClient, avatarService, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: api.NewRouter(app.handler),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(context.Background(), "shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "HTTP server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.cache.Close(); err != nil {
		app.logger.Warn(ctx, "cache close error", "error", err)
	}
	if app.remote != nil {
		if err := app.remote.Close(); err != nil {
			app.logger.Warn(ctx, "remote store close error", "error", err)
		}
	}
}

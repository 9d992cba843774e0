// Package server wires the GophDrop server together: metadata store, object
// store, vault service, expiry sweeper and HTTP API. It owns process
// lifecycle and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophdrop/internal/logging"
	"github.com/dmitrijs2005/gophdrop/internal/server/config"
	"github.com/dmitrijs2005/gophdrop/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrop/internal/server/objectstore"
	"github.com/dmitrijs2005/gophdrop/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrop/internal/server/rest"
	"github.com/dmitrijs2005/gophdrop/internal/server/services"
	"github.com/dmitrijs2005/gophdrop/internal/server/sweeper"
)

const metricsNamespace = "gophdrop"

// newMetrics is a seam so tests can avoid the global Prometheus registry.
var newMetrics = func() (metrics.Metrics, http.Handler) {
	return metrics.NewProm(metricsNamespace), metrics.Handler()
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.Manager
	vault   *services.VaultService
	sweeper *sweeper.Sweeper
	http    *rest.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	repos, err := newManager(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("metadata store init error: %w", err)
	}

	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	mx, mh := newMetrics()

	vault := services.NewVaultService(repos, store, c, logger, mx)
	sw := sweeper.New(repos, store, c, logger, mx)
	hs := rest.NewHTTPServer(c.HTTPAddr, logger, vault, repos, mx,
		rest.WithMetricsHandler(mh),
		rest.WithAllowedOrigins(c.CORSAllowedOrigins),
	)

	return &App{config: c, logger: logger, repos: repos, vault: vault, sweeper: sw, http: hs}, nil
}

func newManager(ctx context.Context, c *config.Config) (repomanager.Manager, error) {
	switch c.MetadataBackend {
	case config.MetadataPostgres:
		return repomanager.NewPostgresManager(ctx, c.DatabaseDSN)
	case config.MetadataRedis:
		return repomanager.NewRedisManager(ctx, c.RedisURL)
	case config.MetadataMemory:
		return repomanager.NewInMemoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", c.MetadataBackend)
	}
}

func newStore(ctx context.Context, c *config.Config) (objectstore.Store, error) {
	switch c.StorageBackend {
	case config.StorageS3:
		return objectstore.NewS3Store(ctx, objectstore.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Endpoint:     c.S3Endpoint,
			Bucket:       c.S3Bucket,
			UsePathStyle: c.S3UsePathStyle,
		})
	case config.StorageMinio:
		s, err := objectstore.NewMinioStore(objectstore.MinioConfig{
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			UseSSL:    c.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if c.S3CreateBucket {
			if err := s.EnsureBucket(ctx, c.S3Region); err != nil {
				return nil, err
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
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
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a shutdown signal arrives, ctx is cancelled or the HTTP
// server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"metadata_backend", app.config.MetadataBackend,
		"storage_backend", app.config.StorageBackend,
	)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "failed to close metadata store", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}

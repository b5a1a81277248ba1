// Package server wires the filevault components together and runs them:
// the metadata store, the blob store, the services, the rate limiter sweep
// and the HTTP server, with graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/filevault/internal/filex"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/httpapi"
	"github.com/dmitrijs2005/filevault/internal/server/metrics"
	"github.com/dmitrijs2005/filevault/internal/server/ratelimit"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	limiter *ratelimit.Limiter
	server  *httpapi.HTTPServer
}

// Seams for tests.
var (
	openDB = func(c *config.Config) (*sql.DB, error) {
		if c.DatabaseDriver == config.DriverSQLite {
			return repomanager.OpenSQLite(c.DatabaseDSN)
		}
		return sql.Open(c.DatabaseDriver, c.DatabaseDSN)
	}
	newS3Store = blobstore.NewS3Store
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := openDB(c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	if c.SpoolDir != "" {
		if c.SpoolDir, err = filex.EnsureDir(c.SpoolDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("spool dir error: %w", err)
		}
	}

	mc := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	reg.MustRegister(mc, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clk := clock.WallClock
	contents := services.NewContentRegistry(db, rm, blobs, clk, mc, logger)
	quota := services.NewQuotaLedger(db, rm, c, clk, mc)
	files := services.NewFileRegistry(db, rm, contents, quota, clk, mc, logger)
	vault := services.NewVault(c, files, contents, quota, logger)

	limiter := ratelimit.New(c.RateLimitCalls, c.RateLimitWindow, clk)
	srv := httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, vault, limiter, mc, reg, c.RequestTimeout)

	logger.Info(ctx, "App configured",
		"database", c.DatabaseDriver,
		"blobs", c.BlobBackend,
		"quota", humanize.IBytes(uint64(c.StorageQuotaBytes)),
		"rate_limit", fmt.Sprintf("%d/%s", c.RateLimitCalls, c.RateLimitWindow))

	return &App{config: c, logger: logger, db: db, limiter: limiter, server: srv}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.BlobBackend {
	case config.BlobBackendLocal:
		return blobstore.NewLocalStore(c.LocalBlobRoot)
	case config.BlobBackendS3:
		return newS3Store(ctx, blobstore.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", c.BlobBackend)
	}
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run blocks until ctx is cancelled, a shutdown signal arrives or a component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := app.initSignalHandler(ctx)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(ctx)
	})
	g.Go(func() error {
		return app.limiter.Run(ctx)
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}

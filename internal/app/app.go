// Package app builds the ingestor's long-lived services from configuration
// and owns their shutdown.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/api"
	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
	"github.com/JakeFAU/catalog-ingestor/internal/clock/system"
	"github.com/JakeFAU/catalog-ingestor/internal/config"
	"github.com/JakeFAU/catalog-ingestor/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/catalog-ingestor/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-ingestor/internal/hash/sha256"
	"github.com/JakeFAU/catalog-ingestor/internal/id/uuid"
	"github.com/JakeFAU/catalog-ingestor/internal/metrics"
	"github.com/JakeFAU/catalog-ingestor/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-ingestor/internal/progress"
	progresssinks "github.com/JakeFAU/catalog-ingestor/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/catalog-ingestor/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/catalog-ingestor/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-ingestor/internal/report"
	gcsstorage "github.com/JakeFAU/catalog-ingestor/internal/storage/gcs"
	localstorage "github.com/JakeFAU/catalog-ingestor/internal/storage/local"
	memorystorage "github.com/JakeFAU/catalog-ingestor/internal/storage/memory"
	pgstore "github.com/JakeFAU/catalog-ingestor/internal/storage/postgres"
)

// RunStore records runs and serves the latest one to the ops API.
type RunStore interface {
	catalog.RunRecorder
	api.RunReader
}

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	reg    prometheus.Registerer

	dispatch  *dispatcher.Dispatcher
	hub       *progress.Hub
	store     catalog.Store
	runs      RunStore
	checks    map[string]api.ReadyCheck
	apiServer *api.Server
	closers   []closer
}

type closer struct {
	name  string
	close func() error
}

// Option customizes Build.
type Option func(*App)

// WithRegisterer registers progress collectors against reg instead of the
// default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) {
		a.reg = reg
	}
}

// Build creates the application's dependencies. On error, anything already
// opened is closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		reg:    prometheus.DefaultRegisterer,
		checks: make(map[string]api.ReadyCheck),
	}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	metrics.Init()
	a.logger.Info("building application dependencies",
		zap.Int("concurrency", cfg.Ingest.Concurrency),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
	)

	source, pages, err := a.setupCatalog()
	if err != nil {
		return nil, err
	}
	if err := a.setupDatabase(ctx); err != nil {
		return nil, err
	}
	blobs, err := a.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.setupProgress(); err != nil {
		return nil, err
	}

	archiver := report.New(blobs, publisher, report.Config{
		Prefix: cfg.Storage.Prefix,
	}, a.logger).WithHasher(sha256.New())

	a.dispatch = dispatcher.New(
		source,
		pages,
		a.store,
		a.runs,
		archiver,
		a.hub,
		system.New(),
		uuid.New(),
		dispatcher.Config{
			Concurrency:         cfg.Ingest.Concurrency,
			MaxPagesPerCategory: cfg.Ingest.MaxPagesPerCategory,
			RunTimeout:          cfg.Ingest.RunTimeout,
			PersistTimeout:      cfg.Ingest.PersistTimeout,
			TruncateBeforeRun:   cfg.Ingest.TruncateBeforeRun,
		},
		a.logger.Named("dispatcher"),
	)

	a.apiServer = api.NewServer(api.Options{
		Runs:    a.runs,
		Running: a.dispatch.Running,
		Checks:  a.checks,
	}, a.logger)

	return a, nil
}

func (a *App) setupCatalog() (*catalog.CategorySource, *catalog.PageFetcher, error) {
	params, err := a.cfg.Catalog.Params()
	if err != nil {
		return nil, nil, err
	}
	timeout := a.cfg.HTTP.RequestTimeout()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.HTTP.UserAgent,
		Timeout:   timeout,
	})
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: a.cfg.HTTP.RequestsPerSecond,
		Burst:             a.cfg.HTTP.Burst,
	})
	retry := catalog.NewExponentialRetryPolicy(
		a.cfg.HTTP.MaxRetries,
		a.cfg.HTTP.BackoffInitial(),
		a.cfg.HTTP.BackoffMax(),
	)
	a.logger.Info("catalog client configured",
		zap.String("user_agent", a.cfg.HTTP.UserAgent),
		zap.Duration("timeout", timeout),
		zap.Int("max_retries", a.cfg.HTTP.MaxRetries),
		zap.Float64("requests_per_second", a.cfg.HTTP.RequestsPerSecond),
	)

	source := catalog.NewCategorySource(
		fetcher,
		a.cfg.Catalog.CategoriesURL,
		a.cfg.Catalog.StrictParse,
		timeout,
		a.logger.Named("categories"),
	)
	pages := catalog.NewPageFetcher(
		fetcher,
		catalog.PageFetcherConfig{
			Listing: catalog.ListingURL{
				BaseURL: a.cfg.Catalog.ListingBaseURL,
				Params:  params,
			},
			RequestTimeout: timeout,
		},
		limiter,
		retry,
		a.logger.Named("pages"),
	)
	return source, pages, nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory catalog store")
		a.store = memorystorage.NewCatalogStore()
		a.runs = memorystorage.NewRunStore()
		return nil
	}
	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("postgres init failed: %w", err)
	}
	a.closers = append(a.closers, closer{name: "postgres", close: func() error {
		pool.Close()
		return nil
	}})

	store, err := pgstore.NewCatalogStore(pool, pgstore.CatalogStoreConfig{
		CategoriesTable: a.cfg.DB.CategoriesTable,
		ProductsTable:   a.cfg.DB.ProductsTable,
	})
	if err != nil {
		return fmt.Errorf("catalog store init failed: %w", err)
	}
	runs, err := pgstore.NewRunStore(pool, a.cfg.DB.RunsTable)
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	a.store = store
	a.runs = runs
	a.checks["postgres"] = store.Ping
	a.logger.Info("postgres stores initialized",
		zap.String("categories_table", a.cfg.DB.CategoriesTable),
		zap.String("products_table", a.cfg.DB.ProductsTable),
		zap.String("runs_table", a.cfg.DB.RunsTable),
	)
	return nil
}

func (a *App) setupStorage(ctx context.Context) (catalog.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		store, err := gcsstorage.New(ctx, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.closers = append(a.closers, closer{name: "gcs", close: store.Close})
		a.logger.Info("using GCS report storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case config.StorageLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local report storage", zap.String("path", a.cfg.Storage.LocalDir))
		return store, nil
	default:
		a.logger.Info("using in-memory report storage")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (catalog.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New("ingest-runs"), nil
	}
	pub, err := gcppublisher.New(ctx, gcppublisher.Config{
		ProjectID: a.cfg.PubSub.ProjectID,
		TopicName: a.cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.closers = append(a.closers, closer{name: "pubsub", close: pub.Close})
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func (a *App) setupProgress() error {
	promSink, err := progresssinks.NewPrometheusSink(a.reg)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{
		Logger: a.logger.Named("progress_hub"),
	},
		progresssinks.NewLogSink(a.logger.Named("progress")),
		promSink,
	)
	return nil
}

// RunOnce performs a single ingestion run.
func (a *App) RunOnce(ctx context.Context) (dispatcher.Report, error) {
	rep, err := a.dispatch.Run(ctx)
	if err != nil {
		return rep, fmt.Errorf("ingestion run: %w", err)
	}
	return rep, nil
}

// Dispatcher exposes the run coordinator.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatch
}

// Close flushes progress events and releases clients, in reverse build order.
func (a *App) Close(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		if dropped, failed := a.hub.Dropped(), a.hub.SinkFailures(); dropped > 0 || failed > 0 {
			a.logger.Warn("progress delivery incomplete",
				zap.Int64("dropped", dropped),
				zap.Int64("sink_failures", failed),
			)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

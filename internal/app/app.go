// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	httpAdapter "github.com/jobrunner/stratum/internal/adapters/http"
	"github.com/jobrunner/stratum/internal/adapters/index"
	"github.com/jobrunner/stratum/internal/adapters/metrics"
	"github.com/jobrunner/stratum/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/stratum/internal/adapters/tls"
	"github.com/jobrunner/stratum/internal/adapters/watcher"
	"github.com/jobrunner/stratum/internal/application"
	"github.com/jobrunner/stratum/internal/config"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	Storage        output.ObjectStorage
	IndexStore     output.IndexStore
	Cache          *application.SnapshotCache
	SearchService  *application.SearchService
	CatalogService *application.CatalogService
	HealthService  *application.HealthService
	Refresher      *application.Refresher
	HTTPServer     *httpAdapter.Server
	TLSServer      *tlsAdapter.Server
	Watcher        *watcher.Watcher
	Metrics        *metrics.Collector
	MetricsServer  *metrics.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("stratum")
		app.MetricsServer = metrics.NewServer(
			cfg.Metrics.Port,
			cfg.Metrics.Path,
			logger,
		)
	}

	var metricsCollector output.MetricsCollector
	if app.Metrics != nil {
		metricsCollector = app.Metrics
	} else {
		metricsCollector = &output.NoOpMetrics{}
	}

	// Initialize storage adapter
	store, err := NewStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	// Initialize index persistence
	app.IndexStore = index.NewStore()

	// Initialize snapshot builder and cache
	builder := application.NewBuilder(app.Storage, metricsCollector, logger)
	app.Cache = application.NewSnapshotCache(builder, metricsCollector, logger, application.CacheConfig{
		TTL:         cfg.Index.TTL,
		RejectEmpty: cfg.Index.RejectEmpty,
	})

	// Initialize search service
	app.SearchService = application.NewSearchService(
		app.Cache,
		metricsCollector,
		logger,
		application.SearchConfig{
			DefaultLimit: cfg.Query.DefaultLimit,
			MaxLimit:     cfg.Query.MaxLimit,
		},
	)

	// Initialize catalog service
	storageType := output.StorageType(cfg.Storage.Type)
	app.CatalogService = application.NewCatalogService(app.Cache, storageType, logger)

	// Initialize health service
	app.HealthService = application.NewHealthService(app.Cache)

	// A refresher only makes sense against a remote source; local sources
	// hot-reload through the file watcher instead.
	if storageType.IsRemote() {
		app.Refresher = application.NewRefresher(app.Cache, cfg.Index.RefreshInterval, logger)
	}

	// Initialize HTTP server
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.SearchService,
		app.CatalogService,
		app.HealthService,
		app.Refresher,
		logger,
	)

	if app.Metrics != nil {
		app.HTTPServer.Router().Use(app.Metrics.Middleware)
	}

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize file watcher for hot-reload of a local source
	if cfg.Storage.Type == "local" && cfg.Index.WatchSource {
		w, err := watcher.New(
			watcher.Config{
				Paths: []string{cfg.Storage.LocalPath},
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all application components.
func (a *App) Start(ctx context.Context) error {
	if err := a.loadInitialSnapshot(ctx); err != nil {
		return err
	}

	// Start file watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	// Start periodic refresher
	if a.Refresher != nil && a.Refresher.Interval() > 0 {
		a.Refresher.Start(ctx)
	}

	// Start metrics server in background
	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil && err.Error() != "http: Server closed" {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Start server
	if a.Config.TLS.Enabled && a.TLSServer != nil {
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// loadInitialSnapshot populates the cache from a persisted index when
// one exists, otherwise builds from the source. A fresh build is
// written back to the index directory.
func (a *App) loadInitialSnapshot(ctx context.Context) error {
	if a.Config.Index.Path != "" {
		if a.Config.Index.RemotePrefix != "" {
			if err := a.IndexStore.Fetch(ctx, a.Storage, a.Config.Index.RemotePrefix, a.Config.Index.Path); err != nil {
				a.Logger.Warn("failed to fetch prebuilt index",
					"prefix", a.Config.Index.RemotePrefix,
					"error", err,
				)
			}
		}

		snap, err := a.IndexStore.Read(ctx, a.Config.Index.Path)
		if err == nil {
			a.Cache.Install(snap, time.Now())
			a.Logger.Info("loaded persisted index",
				"path", a.Config.Index.Path,
				"items", snap.ItemCount(),
				"collections", snap.CollectionCount(),
			)
			return nil
		}
		a.Logger.Warn("no usable persisted index, building from source",
			"path", a.Config.Index.Path,
			"error", err,
		)
	}

	if err := a.Cache.Refresh(ctx); err != nil {
		return fmt.Errorf("building initial snapshot: %w", err)
	}

	if a.Config.Index.Path != "" {
		if snap, ok := a.Cache.Current(); ok {
			if err := a.IndexStore.Write(ctx, a.Config.Index.Path, snap); err != nil {
				a.Logger.Warn("failed to persist index", "path", a.Config.Index.Path, "error", err)
			}
		}
	}
	return nil
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Stop watcher
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	// Stop refresher
	if a.Refresher != nil {
		a.Refresher.Stop()
	}

	// Shutdown metrics server
	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	return nil
}

// handleFileEvent rebuilds the snapshot when the local source changes.
// The cache collapses bursts of events into one build.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("source changed, rebuilding index",
		"path", event.Path,
		"operation", event.Operation.String(),
	)
	return a.Cache.Refresh(ctx)
}

// NewStorage initializes the appropriate storage adapter. It is also
// used by the offline index command.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

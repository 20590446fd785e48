// Package app initializes and holds long-lived application services, acting as a
// dependency injection container for the watcher commands.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/api"
	"github.com/JakeFAU/homework-watcher/internal/clock/system"
	"github.com/JakeFAU/homework-watcher/internal/config"
	"github.com/JakeFAU/homework-watcher/internal/errcache"
	"github.com/JakeFAU/homework-watcher/internal/fetcher/practicum"
	"github.com/JakeFAU/homework-watcher/internal/id/uuid"
	"github.com/JakeFAU/homework-watcher/internal/notifier"
	"github.com/JakeFAU/homework-watcher/internal/notifier/telegram"
	"github.com/JakeFAU/homework-watcher/internal/pipeline"
	"github.com/JakeFAU/homework-watcher/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/homework-watcher/internal/publisher/pubsub"
	"github.com/JakeFAU/homework-watcher/internal/storage"
	"github.com/JakeFAU/homework-watcher/internal/storage/gcs"
	"github.com/JakeFAU/homework-watcher/internal/storage/memory"
	"github.com/JakeFAU/homework-watcher/internal/storage/postgres"
	"github.com/JakeFAU/homework-watcher/internal/storage/s3"
	"github.com/JakeFAU/homework-watcher/internal/storage/sqlite"
)

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and closed when the command finishes.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runner *pipeline.Runner
	ready  []api.ReadyFunc

	closers []func()
}

// New creates and initializes an App from cfg. It fails fast if any service cannot
// be initialized and releases whatever it already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger.Info("initializing application services")

	fetch, err := practicum.New(practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    cfg.Practicum.Token,
		Timeout:  cfg.FetchTimeout(),
	}, nil, logger.Named("practicum"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	store, err := a.newStatusStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	blobs, err := a.newBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	cache, err := errcache.New(blobs, cfg.Storage.Key, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize error cache: %w", err)
	}

	sender, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		ChatID:  cfg.Telegram.ChatID,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: cfg.TelegramTimeout(),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram: %w", err)
	}
	dispatch := notifier.New(sender, logger, notifier.WithRate(cfg.Telegram.RatePerSecond, cfg.Telegram.Burst))

	pub, err := a.newPublisher(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pubsub: %w", err)
	}

	a.runner, err = pipeline.New(pipeline.Deps{
		Fetcher:   fetch,
		Store:     store,
		Cache:     cache,
		Notifier:  dispatch,
		Publisher: pub,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    logger,
	}, pipeline.Options{Cursor: cfg.Practicum.Cursor})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("db_backend", cfg.DB.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("publish_events", pub != nil),
	)
	return a, nil
}

func (a *App) newStatusStore(ctx context.Context) (pipeline.StatusStore, error) {
	switch a.cfg.DB.Backend {
	case config.BackendMemory:
		a.logger.Info("using in-memory status store; statuses are lost on exit")
		return memory.NewStatusStore(), nil
	case config.BackendPostgres:
		store, err := postgres.NewStatusStore(ctx, postgres.StatusStoreConfig{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
			MinConns: a.cfg.DB.MinConns,
			Retry: postgres.RetryConfig{
				MaxAttempts: a.cfg.DB.RetryMaxAttempts,
				BaseDelay:   a.cfg.RetryBaseDelay(),
				MaxDelay:    a.cfg.RetryMaxDelay(),
			},
		}, a.logger.Named("postgres"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.ready = append(a.ready, store.Ping)
		if a.cfg.DB.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, sqlite.Config{Path: a.cfg.DB.Path, BusyTimeout: 5 * time.Second}, a.logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("error closing sqlite", zap.Error(err))
			}
		})
		a.ready = append(a.ready, store.Ping)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database backend: %s", a.cfg.DB.Backend)
	}
}

func (a *App) newBlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		a.logger.Info("using in-memory blob store; the error cache is lost on exit")
		return memory.NewBlobStore(), nil
	case config.BackendS3:
		return s3.New(s3.Config{
			Bucket:          a.cfg.Storage.Bucket,
			Endpoint:        a.cfg.Storage.Endpoint,
			Region:          a.cfg.Storage.Region,
			AccessKeyID:     a.cfg.Storage.AccessKeyID,
			SecretAccessKey: a.cfg.Storage.SecretAccessKey,
		})
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Storage.Bucket, Endpoint: a.cfg.Storage.Endpoint})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("error closing gcs client", zap.Error(err))
			}
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
}

func (a *App) newPublisher(ctx context.Context) (publisher.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client.Topic(a.cfg.PubSub.TopicName))
	a.closers = append(a.closers, func() {
		pub.Stop()
		if err := client.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	})
	return pub, nil
}

// Runner returns the invocation runner.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// ReadyChecks returns the readiness probes of the configured backends.
func (a *App) ReadyChecks() []api.ReadyFunc {
	return a.ready
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Close gracefully shuts down all services in reverse order of creation.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	// Syncing stdout/stderr fails with EINVAL on some platforms; nothing to do about it.
	_ = a.logger.Sync()
}

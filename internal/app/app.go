// Package app initializes and holds long-lived services for a check run,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/config"
	"github.com/JakeFAU/steam-vanity-checker/internal/publisher"
	pubsubpub "github.com/JakeFAU/steam-vanity-checker/internal/publisher/pubsub"
	"github.com/JakeFAU/steam-vanity-checker/internal/storage/gcs"
	"github.com/JakeFAU/steam-vanity-checker/internal/storage/local"
	"github.com/JakeFAU/steam-vanity-checker/internal/storage/memory"
	"github.com/JakeFAU/steam-vanity-checker/internal/storage/postgres"
	"github.com/JakeFAU/steam-vanity-checker/internal/store"
)

// Repository is a CheckRepository that owns a connection.
type Repository interface {
	store.CheckRepository
	Close()
}

// Publisher is a publisher.Publisher that owns a client.
type Publisher interface {
	publisher.Publisher
	Close() error
}

// App holds the optional integrations selected by configuration. A nil
// accessor result means the integration is disabled.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	repo  Repository
	pub   Publisher
	blobs store.BlobStore
}

// Option overrides how a service is built, mostly for tests.
type Option func(*builders)

type builders struct {
	repo  func(ctx context.Context, cfg config.Config) (Repository, error)
	pub   func(ctx context.Context, cfg config.Config) (Publisher, error)
	blobs func(ctx context.Context, cfg config.Config) (store.BlobStore, error)
}

// WithRepositoryFactory replaces the Postgres constructor.
func WithRepositoryFactory(f func(ctx context.Context, cfg config.Config) (Repository, error)) Option {
	return func(b *builders) { b.repo = f }
}

// WithPublisherFactory replaces the Pub/Sub constructor.
func WithPublisherFactory(f func(ctx context.Context, cfg config.Config) (Publisher, error)) Option {
	return func(b *builders) { b.pub = f }
}

// WithBlobStoreFactory replaces the export store constructor.
func WithBlobStoreFactory(f func(ctx context.Context, cfg config.Config) (store.BlobStore, error)) Option {
	return func(b *builders) { b.blobs = f }
}

// New builds the services cfg asks for and fails fast if any of them cannot
// be initialized. Services already built are closed on failure.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &builders{repo: newRepository, pub: newPublisher, blobs: newBlobStore}
	for _, opt := range opts {
		opt(b)
	}
	a := &App{cfg: cfg, logger: logger}

	if cfg.PostgresEnabled() {
		logger.Info("connecting to postgres mirror", zap.String("table", cfg.Postgres.Table))
		repo, err := b.repo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.repo = repo
	}

	if cfg.PubSubEnabled() {
		logger.Info("connecting to pubsub", zap.String("topic", cfg.PubSub.Topic))
		pub, err := b.pub(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub: %w", err)
		}
		a.pub = pub
	}

	if cfg.Export.Provider != config.ExportNone {
		logger.Info("using export provider", zap.String("provider", cfg.Export.Provider))
		blobs, err := b.blobs(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init export: %w", err)
		}
		a.blobs = blobs
	}

	return a, nil
}

func newRepository(ctx context.Context, cfg config.Config) (Repository, error) {
	s, err := postgres.NewCheckStore(ctx, postgres.Config{DSN: cfg.Postgres.DSN, Table: cfg.Postgres.Table})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newPublisher(ctx context.Context, cfg config.Config) (Publisher, error) {
	return pubsubpub.New(ctx, pubsubpub.Config{ProjectID: cfg.PubSub.ProjectID, Topic: cfg.PubSub.Topic})
}

func newBlobStore(ctx context.Context, cfg config.Config) (store.BlobStore, error) {
	switch cfg.Export.Provider {
	case config.ExportGCS:
		return gcs.Open(ctx, gcs.Config{Bucket: cfg.Export.Bucket})
	case config.ExportLocal:
		return local.New(local.Config{BaseDir: cfg.Export.Dir})
	case config.ExportMemory:
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown export provider: %s", cfg.Export.Provider)
	}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Repository returns the Postgres mirror, or nil.
func (a *App) Repository() store.CheckRepository {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

// Publisher returns the available-name publisher, or nil.
func (a *App) Publisher() publisher.Publisher {
	if a.pub == nil {
		return nil
	}
	return a.pub
}

// BlobStore returns the export store, or nil.
func (a *App) BlobStore() store.BlobStore {
	return a.blobs
}

// Close releases every service. It is safe to call more than once.
func (a *App) Close() {
	var errs []error
	if a.pub != nil {
		errs = append(errs, a.pub.Close())
		a.pub = nil
	}
	if a.repo != nil {
		a.repo.Close()
		a.repo = nil
	}
	if c, ok := a.blobs.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	a.blobs = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
	}
}

// Package app builds the long-lived services of the crawler from
// configuration and holds them for the commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/browser"
	"github.com/JakeFAU/job-listing-crawler/internal/clock/system"
	"github.com/JakeFAU/job-listing-crawler/internal/config"
	"github.com/JakeFAU/job-listing-crawler/internal/crawler"
	"github.com/JakeFAU/job-listing-crawler/internal/guard"
	"github.com/JakeFAU/job-listing-crawler/internal/id/uuid"
	"github.com/JakeFAU/job-listing-crawler/internal/metrics"
	"github.com/JakeFAU/job-listing-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/job-listing-crawler/internal/source"
	"github.com/JakeFAU/job-listing-crawler/internal/storage"
	"github.com/JakeFAU/job-listing-crawler/internal/storage/gcs"
	"github.com/JakeFAU/job-listing-crawler/internal/storage/local"
	"github.com/JakeFAU/job-listing-crawler/internal/storage/postgres"
)

// App holds the shared services. It is built once at startup and closed
// when the command finishes.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	engine   *crawler.Engine
	pipeline *Pipeline
	closers  []func() error
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Engine returns the crawl engine.
func (a *App) Engine() *crawler.Engine { return a.engine }

// Pipeline returns the guarded crawl-and-deliver pipeline.
func (a *App) Pipeline() *Pipeline { return a.pipeline }

// New builds every service named by cfg. Sinks whose settings are empty are
// left out. The browser is not started until a crawl acquires a session.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.engine = engine

	sinks, err := a.openSinks(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = NewPipeline(guard.New(cfg.Lock.Path), engine, sinks, logger.Named("pipeline"))
	logger.Info("application services initialized",
		zap.Strings("sources", cfg.Crawler.Sources),
		zap.Int("keywords", len(cfg.Crawler.Keywords)),
	)
	return a, nil
}

// BrowserConfig maps the crawler and browser sections onto browser.Config.
func BrowserConfig(cfg config.Config) browser.Config {
	return browser.Config{
		UserAgent:         cfg.Crawler.UserAgent,
		ExecPath:          cfg.Browser.ExecPath,
		Headed:            !cfg.Browser.Headless,
		Sandbox:           !cfg.Browser.NoSandbox,
		MultiProcess:      !cfg.Browser.SingleProcess,
		NavigationTimeout: cfg.Crawler.NavigationTimeout,
		ElementTimeout:    cfg.Crawler.ElementTimeout,
	}
}

func newEngine(cfg config.Config, logger *zap.Logger) (*crawler.Engine, error) {
	pager := browser.NewPager(cfg.Crawler.PagerMaxAttempts, cfg.Crawler.PagerDelay, logger.Named("pager"))
	adapters, err := source.FromNames(cfg.Crawler.Sources, source.Options{
		MaxResults:    cfg.Crawler.MaxResults,
		LoadMoreDelay: cfg.Crawler.LoadMoreDelay,
		Pager:         pager,
		Logger:        logger.Named("source"),
	})
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}
	crawlAdapters := make([]crawler.Adapter, len(adapters))
	for i, a := range adapters {
		crawlAdapters[i] = a
	}

	manager := browser.NewManager(BrowserConfig(cfg), logger.Named("browser"))
	return crawler.NewEngine(
		crawler.Config{FetchTimeout: cfg.Crawler.FetchTimeout},
		sessionLauncher{manager: manager},
		crawlAdapters,
		metrics.NewObserver(),
		system.New(),
		uuid.New(),
		logger.Named("crawler"),
	), nil
}

func (a *App) openSinks(ctx context.Context) (Sinks, error) {
	out := a.cfg.Output
	var (
		sinks Sinks
		blobs storage.Multi
	)

	if out.LocalDir != "" {
		store, err := local.New(local.Config{BaseDir: out.LocalDir})
		if err != nil {
			return Sinks{}, fmt.Errorf("init local output: %w", err)
		}
		a.logger.Info("archiving reports locally", zap.String("dir", out.LocalDir))
		blobs = append(blobs, store)
	}

	if out.GCSBucket != "" {
		store, err := gcs.Open(ctx, gcs.Config{Bucket: out.GCSBucket}, a.logger)
		if err != nil {
			return Sinks{}, fmt.Errorf("init gcs output: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.logger.Info("archiving reports to GCS", zap.String("bucket", out.GCSBucket))
		blobs = append(blobs, store)
	}

	switch len(blobs) {
	case 0:
	case 1:
		sinks.Blobs = blobs[0]
	default:
		sinks.Blobs = blobs
	}

	if a.cfg.DB.DSN != "" {
		store, err := postgres.NewListingStore(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return Sinks{}, fmt.Errorf("init listing store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			return Sinks{}, fmt.Errorf("init listing schema: %w", err)
		}
		a.logger.Info("storing listings in postgres", zap.String("table", a.cfg.DB.Table))
		sinks.Listings = store
	}

	if out.PubSubProject != "" {
		pub, err := pubsub.Open(ctx, out.PubSubProject)
		if err != nil {
			return Sinks{}, fmt.Errorf("init pubsub output: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		a.logger.Info("publishing listings",
			zap.String("project", out.PubSubProject),
			zap.String("topic", out.PubSubTopic),
		)
		sinks.Publisher = pub
		sinks.Topic = out.PubSubTopic
	}

	return sinks, nil
}

// Close waits for background crawls and releases every service the App
// opened, in reverse order.
func (a *App) Close() error {
	if a.pipeline != nil {
		a.pipeline.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// sessionLauncher adapts browser.Manager to crawler.SessionSource.
type sessionLauncher struct {
	manager *browser.Manager
}

func (l sessionLauncher) Acquire(ctx context.Context) (crawler.Session, error) {
	s, err := l.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

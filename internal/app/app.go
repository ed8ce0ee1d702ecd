// Package app is the composition root: it turns a config.Config into the
// long-lived services and exposes the jobs the cron timer runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/api"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/cache"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/clock/system"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/config"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/realtime-proxy-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/id/uuid"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/logging"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/monitor"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/provider"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
	memorypublisher "github.com/JakeFAU/realtime-proxy-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/realtime-proxy-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/scheduler"
	memorystore "github.com/JakeFAU/realtime-proxy-crawler/internal/storage/memory"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/storage/postgres"
)

// Job names used for the cron timer.
const (
	JobCrawl           = "crawl"
	JobFullCrawl       = "full_crawl"
	JobHealthCheck     = "health_check"
	JobMetrics         = "metrics"
	JobProviderRefresh = "provider_refresh"
	JobCacheSweep      = "cache_sweep"
)

// App holds the shared services built from configuration.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  system.Clock

	Registry  *proxypool.Registry
	Rotator   *proxypool.Rotator
	Providers *provider.Aggregator
	Monitor   *monitor.Monitor
	Cache     *cache.Cache[crawler.Record]
	Crawler   *crawler.Orchestrator
	Scheduler *scheduler.Scheduler
	Sink      crawler.Sink
	Publisher scheduler.Publisher

	closers []func() error
}

// Option overrides a collaborator, mainly for tests.
type Option func(*overrides)

type overrides struct {
	validator proxypool.Validator
	fetcher   crawler.Fetcher
	robots    crawler.RobotsPolicy
	sink      crawler.Sink
	publisher scheduler.Publisher
}

// WithValidator replaces the HTTP proxy validator.
func WithValidator(v proxypool.Validator) Option {
	return func(o *overrides) { o.validator = v }
}

// WithFetcher replaces the colly page fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *overrides) { o.fetcher = f }
}

// WithRobots replaces the robots.txt policy.
func WithRobots(r crawler.RobotsPolicy) Option {
	return func(o *overrides) { o.robots = r }
}

// WithSink replaces the configured record sink.
func WithSink(s crawler.Sink) Option {
	return func(o *overrides) { o.sink = s }
}

// WithPublisher replaces the configured saved-record publisher.
func WithPublisher(p scheduler.Publisher) Option {
	return func(o *overrides) { o.publisher = p }
}

// New builds every service described by cfg. It fails fast on the first
// service that cannot be initialised.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var ov overrides
	for _, opt := range opts {
		opt(&ov)
	}
	logger = logging.OrNop(logger)
	a := &App{cfg: cfg, logger: logger, clock: system.New()}

	if err := a.buildPool(ov); err != nil {
		return nil, err
	}
	if err := a.buildProviders(); err != nil {
		return nil, err
	}
	a.Monitor = monitor.New(monitor.Config{
		Enabled: cfg.Monitoring.Enabled && cfg.Pool.Enabled,
	}, a.Registry, logger.Named("monitor"))

	resultCache, err := cache.New[crawler.Record](cache.Config{
		Enabled: cfg.Cache.Enabled,
		TTL:     cfg.Cache.TTL,
		MaxSize: cfg.Cache.MaxSize,
	}, a.clock)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	a.Cache = resultCache

	a.buildCrawler(ov)

	if err := a.buildSink(ctx, ov); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPublisher(ctx, ov); err != nil {
		a.Close()
		return nil, err
	}

	a.Scheduler = scheduler.New(scheduler.Config{
		MaxURLsPerRun:        cfg.Crawler.MaxURLsPerRun,
		ConnectivityTimeout:  cfg.Crawler.ConnectivityTimeout,
		ConnectivityAttempts: cfg.Crawler.ConnectivityAttempts,
		ConnectivityDelay:    cfg.Crawler.RetryDelay,
		MaxRetryDelay:        cfg.Crawler.MaxRetryDelay,
		URLTimeout:           cfg.Crawler.URLTimeout,
		SaveAttempts:         cfg.Persistence.MaxAttempts,
		SaveDelay:            cfg.Persistence.RetryDelay,
		Topic:                cfg.Publisher.Topic,
	}, scheduler.Deps{
		Crawler:   a.Crawler,
		Sink:      a.Sink,
		Publisher: a.Publisher,
		IDs:       uuid.New(),
		Clock:     a.clock,
		Logger:    logger.Named("scheduler"),
	})

	logger.Info("application services initialized",
		zap.Bool("pool_enabled", cfg.Pool.Enabled),
		zap.String("strategy", a.Registry.StrategyName()),
		zap.Int("providers", len(a.Providers.Providers())),
		zap.Int("targets", len(cfg.Targets)),
		zap.String("persistence", cfg.Persistence.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
	)
	return a, nil
}

func (a *App) buildPool(ov overrides) error {
	strategy, err := proxypool.NewStrategy(a.cfg.Rotation.Strategy, a.clock)
	if err != nil {
		if !errors.Is(err, proxypool.ErrUnknownStrategy) {
			return fmt.Errorf("init rotation strategy: %w", err)
		}
		a.logger.Warn("unknown rotation strategy, using first working proxy",
			zap.String("strategy", a.cfg.Rotation.Strategy))
	}
	validator := ov.validator
	if validator == nil {
		validator = proxypool.NewHTTPValidator(a.cfg.Pool.TestURL, a.cfg.Pool.TestTimeout, a.logger.Named("validator"))
	}
	a.Registry = proxypool.NewRegistry(proxypool.Config{
		MaxProxies:            a.cfg.Pool.MaxProxies,
		MaxFailureCount:       a.cfg.Pool.MaxFailureCount,
		ValidationConcurrency: a.cfg.Pool.ValidationConcurrency,
	}, validator, strategy, a.clock, a.logger.Named("registry"))
	a.Rotator = proxypool.NewRotator(a.Registry, proxypool.RotatorConfig{
		SwitchAfter:      a.cfg.Rotation.SwitchAfter,
		FailureThreshold: a.cfg.Rotation.FailureThreshold,
	}, a.logger.Named("rotator"))
	return nil
}

func (a *App) buildProviders() error {
	a.Providers = provider.NewAggregator(a.logger.Named("providers"))
	for _, pc := range a.cfg.Providers {
		p, err := provider.New(provider.Source{
			Name:         pc.Name,
			Kind:         pc.Type,
			URL:          pc.URL,
			Priority:     pc.Priority,
			Protocol:     pc.Protocol,
			Timeout:      pc.Timeout,
			Entries:      pc.Entries,
			RowSelector:  pc.RowSelector,
			HostSelector: pc.HostSelector,
			PortSelector: pc.PortSelector,
		}, a.cfg.Crawler.UserAgent)
		if err != nil {
			return fmt.Errorf("init provider: %w", err)
		}
		a.Providers.AddProvider(p, !pc.Disabled)
	}
	return nil
}

func (a *App) buildCrawler(ov overrides) {
	fetcher := ov.fetcher
	if fetcher == nil {
		limiter := ratelimit.New(ratelimit.Config{DefaultRPS: a.cfg.Crawler.RateLimitPerDomain, DefaultBurst: 1})
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   a.cfg.Crawler.RequestTimeout,
		}, limiter, a.logger.Named("fetcher"))
	}
	useProxy := a.cfg.Crawler.UseProxy && a.cfg.Pool.Enabled
	var picker crawler.ProxyPicker
	if useProxy {
		picker = a.Rotator
	}
	a.Crawler = crawler.NewOrchestrator(a.cfg.Targets, crawler.Options{
		UserAgent:             a.cfg.Crawler.UserAgent,
		RequestTimeout:        a.cfg.Crawler.RequestTimeout,
		UseProxy:              useProxy,
		MaxConcurrentRequests: a.cfg.Crawler.MaxConcurrentRequests,
		BatchDelay:            a.cfg.Crawler.BatchDelay,
		MaxDescriptionLength:  a.cfg.Limits.MaxDescriptionLength,
		BlockedDomains:        a.cfg.Crawler.BlockedDomains,
		DisallowedPaths:       a.cfg.Crawler.DisallowedPaths,
		DisallowedExtensions:  a.cfg.Crawler.DisallowedExtensions,
		Retry:                 a.cfg.RetryPolicy(),
	}, crawler.Deps{
		Fetcher: fetcher,
		Proxies: picker,
		Cache:   a.Cache,
		Robots:  ov.robots,
		Clock:   a.clock,
		Logger:  a.logger.Named("crawler"),
	})
}

func (a *App) buildSink(ctx context.Context, ov overrides) error {
	if ov.sink != nil {
		a.Sink = ov.sink
		return nil
	}
	switch a.cfg.Persistence.Provider {
	case "memory":
		a.Sink = memorystore.NewRecordStore()
	case "postgres":
		pg := a.cfg.Persistence.Postgres
		store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:      pg.DSN,
			Table:    pg.Table,
			MaxConns: pg.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres record store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure record schema: %w", err)
		}
		a.Sink = store
	default:
		return fmt.Errorf("unknown persistence provider: %s", a.cfg.Persistence.Provider)
	}
	return nil
}

func (a *App) buildPublisher(ctx context.Context, ov overrides) error {
	if ov.publisher != nil {
		a.Publisher = ov.publisher
		return nil
	}
	switch a.cfg.Publisher.Provider {
	case "none", "":
	case "memory":
		a.Publisher = memorypublisher.New()
	case "pubsub":
		pub, err := pubsubpublisher.New(ctx, a.cfg.Publisher.ProjectID, a.cfg.Publisher.Topic)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		a.Publisher = pub
	default:
		return fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
	return nil
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Handler returns the ops HTTP handler.
func (a *App) Handler() http.Handler {
	return api.NewServer(api.Options{
		PoolEnabled:    a.cfg.Pool.Enabled,
		ReadyThreshold: a.cfg.Monitoring.ReadyThreshold,
	}, api.Deps{
		Health:    a.Monitor,
		Stats:     a.Registry,
		Providers: a.Providers,
		Clock:     a.clock,
		Logger:    a.logger.Named("api"),
	}).Handler()
}

// Close releases external connections in reverse build order.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	for _, closeFn := range slices.Backward(a.closers) {
		if err := closeFn(); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}

package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/provider"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/scheduler"
)

// HealthCheckResult reports one health-check job run.
type HealthCheckResult struct {
	Validation proxypool.ValidationSummary `json:"validation"`
	Removed    int                         `json:"removed"`
	Refreshed  *provider.RefreshSummary    `json:"refreshed,omitempty"`
	Stats      proxypool.Stats             `json:"stats"`
}

// HealthCheck validates every proxy, drops the ones past the failure limit
// and pulls new candidates when the working set falls below the minimum.
func (a *App) HealthCheck(ctx context.Context) (HealthCheckResult, error) {
	var out HealthCheckResult
	if !a.cfg.Pool.Enabled {
		return out, nil
	}
	summary, err := a.Registry.ValidateAll(ctx)
	if err != nil {
		return out, err
	}
	out.Validation = summary
	out.Removed = a.Registry.RemoveFailedProxies()

	if working := len(a.Registry.Working()); working < a.cfg.Pool.MinWorkingProxies {
		a.logger.Info("working proxies below minimum, refreshing providers",
			zap.Int("working", working),
			zap.Int("minimum", a.cfg.Pool.MinWorkingProxies),
		)
		refreshed := a.RefreshProviders(ctx)
		out.Refreshed = &refreshed
	}
	out.Stats = a.Registry.Stats()
	a.logger.Info("health check finished",
		zap.Int("tested", summary.Tested),
		zap.Int("working", out.Stats.WorkingProxies),
		zap.Int("removed", out.Removed),
	)
	return out, nil
}

// RefreshProviders feeds fresh candidates from every active provider into
// the registry.
func (a *App) RefreshProviders(ctx context.Context) provider.RefreshSummary {
	summary := a.Providers.Refresh(ctx, a.Registry)
	a.logger.Info("provider refresh finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("unique", summary.Unique),
		zap.Int("submitted", summary.Submitted),
		zap.Int("working", summary.Added.Success),
	)
	return summary
}

// CollectMetrics records one monitor snapshot.
func (a *App) CollectMetrics(context.Context) {
	a.Monitor.CollectMetrics(a.clock.Now())
}

// SweepCache drops expired crawl results.
func (a *App) SweepCache(context.Context) int {
	removed := a.Cache.Sweep()
	if removed > 0 {
		a.logger.Debug("cache swept", zap.Int("removed", removed), zap.Int("remaining", a.Cache.Len()))
	}
	return removed
}

// Crawl runs every enabled target with the routine URL cap.
func (a *App) Crawl(ctx context.Context) []scheduler.Summary {
	return a.Scheduler.RunScheduled(ctx)
}

// FullCrawl runs every enabled target up to its page limit.
func (a *App) FullCrawl(ctx context.Context) []scheduler.Summary {
	return a.Scheduler.RunFullCrawl(ctx)
}

// RegisterJobs schedules the app's jobs on t using the configured specs.
// Pool jobs are skipped when the pool is disabled.
func (a *App) RegisterJobs(t *scheduler.Timer) error {
	s := a.cfg.Schedule
	jobs := []struct {
		name string
		spec string
		pool bool
		run  scheduler.Job
	}{
		{JobCrawl, s.Crawl, false, func(ctx context.Context) { a.Crawl(ctx) }},
		{JobFullCrawl, s.FullCrawl, false, func(ctx context.Context) { a.FullCrawl(ctx) }},
		{JobHealthCheck, s.HealthCheck, true, a.runHealthCheck},
		{JobMetrics, s.Metrics, true, a.CollectMetrics},
		{JobProviderRefresh, s.ProviderRefresh, true, func(ctx context.Context) { a.RefreshProviders(ctx) }},
		{JobCacheSweep, s.CacheSweep, false, func(ctx context.Context) { a.SweepCache(ctx) }},
	}
	for _, j := range jobs {
		if j.pool && !a.cfg.Pool.Enabled {
			continue
		}
		if err := t.Add(j.name, j.spec, j.run); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runHealthCheck(ctx context.Context) {
	if _, err := a.HealthCheck(ctx); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
	}
}

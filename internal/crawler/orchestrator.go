package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// Crawl statuses reported to metrics.
const (
	statusSuccess  = "success"
	statusCached   = "cached"
	statusFailed   = "failed"
	statusRejected = "rejected"
)

// Deps bundles the collaborators of an Orchestrator. Proxies and Cache are
// optional.
type Deps struct {
	Fetcher Fetcher
	Proxies ProxyPicker
	Cache   ResultCache
	Robots  RobotsPolicy
	Clock   Clock
	Logger  *zap.Logger
}

// Orchestrator crawls single URLs and windows of URLs for configured targets.
type Orchestrator struct {
	opts    Options
	targets map[string]Target
	order   []string
	rules   *URLRules
	fetcher Fetcher
	proxies ProxyPicker
	cache   ResultCache
	robots  RobotsPolicy
	clock   Clock
	logger  *zap.Logger
}

// NewOrchestrator builds an Orchestrator over targets.
func NewOrchestrator(targets []Target, opts Options, deps Deps) *Orchestrator {
	opts = opts.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		opts:    opts,
		targets: make(map[string]Target, len(targets)),
		rules:   NewURLRules(opts.BlockedDomains, opts.DisallowedPaths, opts.DisallowedExtensions),
		fetcher: deps.Fetcher,
		proxies: deps.Proxies,
		cache:   deps.Cache,
		robots:  deps.Robots,
		clock:   deps.Clock,
		logger:  logger,
	}
	for _, t := range targets {
		if _, dup := o.targets[t.Name]; !dup {
			o.order = append(o.order, t.Name)
		}
		o.targets[t.Name] = t
	}
	if o.cache == nil {
		o.cache = noopCache{}
	}
	if o.robots == nil {
		o.robots = NewRobotsEnforcer(opts.UserAgent, opts.RequestTimeout, logger.Named("robots"))
	}
	if o.clock == nil {
		o.clock = utcClock{}
	}
	if o.opts.Retry.Logger == nil {
		o.opts.Retry.Logger = logger
	}
	return o
}

// CacheKey builds the result cache key for a target and URL.
func CacheKey(target, url string) string {
	return target + ":" + url
}

// Targets lists configured targets in configuration order.
func (o *Orchestrator) Targets() []Target {
	out := make([]Target, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.targets[name])
	}
	return out
}

// Target returns the named target or ErrUnknownTarget.
func (o *Orchestrator) Target(name string) (Target, error) {
	t, ok := o.targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

// CrawlWebsite fetches, parses and caches one URL for targetName. Failures
// are reported in the Result, never as a panic or separate error.
func (o *Orchestrator) CrawlWebsite(ctx context.Context, targetName, rawURL string) Result {
	res := o.crawl(ctx, targetName, rawURL)
	status := statusSuccess
	switch {
	case res.FromCache:
		status = statusCached
	case errors.Is(res.Err, ErrValidation):
		status = statusRejected
	case !res.Success:
		status = statusFailed
	}
	metrics.ObserveCrawl(targetName, status)
	if !res.Success {
		o.logger.Debug("crawl failed",
			zap.String("target", targetName),
			zap.String("url", rawURL),
			zap.String("status", status),
			zap.Error(res.Err),
		)
	}
	return res
}

func (o *Orchestrator) crawl(ctx context.Context, targetName, rawURL string) Result {
	if err := o.rules.Check(rawURL); err != nil {
		return failure(rawURL, err)
	}
	pageURL, err := NormalizeURL(rawURL)
	if err != nil {
		return failure(rawURL, fmt.Errorf("%w: %w", ErrValidation, err))
	}

	key := CacheKey(targetName, pageURL)
	if rec, ok := o.cache.Get(key); ok {
		metrics.ObserveCacheLookup(true)
		return Result{URL: pageURL, Success: true, Record: &rec, FromCache: true}
	}
	metrics.ObserveCacheLookup(false)

	target, err := o.Target(targetName)
	if err != nil {
		return failure(pageURL, err)
	}
	if !target.Enabled {
		return failure(pageURL, fmt.Errorf("%w: %q", ErrTargetDisabled, targetName))
	}
	if target.RespectRobotsTxt && !o.robots.Allowed(ctx, pageURL) {
		return failure(pageURL, fmt.Errorf("%w: disallowed by robots.txt", ErrValidation))
	}

	var (
		resp    FetchResponse
		proxyID string
	)
	err = o.opts.Retry.Do(ctx, "fetch "+pageURL, func(ctx context.Context) error {
		var ferr error
		resp, proxyID, ferr = o.fetch(ctx, pageURL)
		return ferr
	})
	if err != nil {
		res := failure(pageURL, err)
		res.ProxyID = proxyID
		return res
	}

	rec, err := Extract(resp.Body, target, pageURL, o.clock.Now())
	if err == nil {
		err = ValidateRecord(rec, o.opts.MaxDescriptionLength)
	}
	if err != nil {
		res := failure(pageURL, err)
		res.ProxyID = proxyID
		return res
	}
	o.cache.Set(key, rec)
	return Result{URL: pageURL, Success: true, Record: &rec, ProxyID: proxyID}
}

func (o *Orchestrator) fetch(ctx context.Context, rawURL string) (FetchResponse, string, error) {
	if o.fetcher == nil {
		return FetchResponse{}, "", fmt.Errorf("%w: no fetcher configured", ErrFetch)
	}
	req := FetchRequest{
		URL:       rawURL,
		UserAgent: o.opts.UserAgent,
		Timeout:   o.opts.RequestTimeout,
	}
	var proxyID string
	if o.opts.UseProxy && o.proxies != nil {
		if rec, ok := o.proxies.Next(proxypool.ProtocolHTTP); ok {
			req.Proxy = &rec
			proxyID = rec.ID
		} else {
			o.logger.Warn("no working proxy available; fetching directly", zap.String("url", rawURL))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	resp, err := o.fetcher.Fetch(ctx, req)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if proxyID != "" {
		o.proxies.ReportOutcome(proxyID, err == nil)
	}
	if err != nil {
		return FetchResponse{}, proxyID, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	return resp, proxyID, nil
}

// BatchCrawl crawls urls in windows of MaxConcurrentRequests. Each window
// finishes before BatchDelay elapses and the next one starts. Only
// successful results are returned.
func (o *Orchestrator) BatchCrawl(ctx context.Context, targetName string, urls []string) BatchResult {
	size := o.opts.MaxConcurrentRequests
	out := BatchResult{Results: []Result{}}
	started := time.Now()

	for start := 0; start < len(urls); start += size {
		if start > 0 {
			if err := Pause(ctx, o.opts.BatchDelay); err != nil {
				o.logger.Warn("batch crawl interrupted", zap.String("target", targetName), zap.Error(err))
				break
			}
		}
		window := urls[start:min(start+size, len(urls))]
		results := make([]Result, len(window))

		var g errgroup.Group
		for i, u := range window {
			g.Go(func() error {
				results[i] = o.CrawlWebsite(ctx, targetName, u)
				return nil
			})
		}
		_ = g.Wait()

		out.Windows++
		for _, res := range results {
			out.Attempted++
			if res.Success {
				out.Results = append(out.Results, res)
				continue
			}
			out.Failed++
			o.logger.Warn("batch crawl url failed",
				zap.String("target", targetName),
				zap.String("url", res.URL),
				zap.String("error", res.Error),
			)
		}
	}

	o.logger.Info("batch crawl finished",
		zap.String("target", targetName),
		zap.Int("attempted", out.Attempted),
		zap.Int("succeeded", len(out.Results)),
		zap.Int("failed", out.Failed),
		zap.Int("windows", out.Windows),
		zap.Duration("elapsed", time.Since(started)),
	)
	return out
}

// TestConnectivity fetches the target's base URL once.
func (o *Orchestrator) TestConnectivity(ctx context.Context, targetName string) error {
	target, err := o.Target(targetName)
	if err != nil {
		return err
	}
	_, _, err = o.fetch(ctx, target.BaseURL)
	return err
}

func failure(rawURL string, err error) Result {
	return Result{URL: rawURL, Error: err.Error(), Err: err}
}

type noopCache struct{}

func (noopCache) Get(string) (Record, bool) { return Record{}, false }
func (noopCache) Set(string, Record)        {}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

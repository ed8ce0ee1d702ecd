package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/crawler"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/metrics"
)

// ErrConnectivity marks a run aborted because the target was unreachable.
var ErrConnectivity = errors.New("target connectivity check failed")

const (
	outcomeSaved     = "saved"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

// Crawler is the subset of crawler.Orchestrator a Scheduler drives.
type Crawler interface {
	Targets() []crawler.Target
	Target(name string) (crawler.Target, error)
	TestConnectivity(ctx context.Context, targetName string) error
	CrawlWebsite(ctx context.Context, targetName, rawURL string) crawler.Result
}

// Publisher announces saved records.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Config tunes a Scheduler. Zero values take the defaults noted per field.
type Config struct {
	MaxURLsPerRun        int           // 10
	ConnectivityTimeout  time.Duration // 10s
	ConnectivityAttempts int           // 3
	ConnectivityDelay    time.Duration // 1s
	MaxRetryDelay        time.Duration
	URLTimeout           time.Duration // 30s
	SaveAttempts         int           // 3
	SaveDelay            time.Duration // 1s
	Topic                string
}

func (c Config) withDefaults() Config {
	if c.MaxURLsPerRun <= 0 {
		c.MaxURLsPerRun = 10
	}
	if c.ConnectivityTimeout <= 0 {
		c.ConnectivityTimeout = 10 * time.Second
	}
	if c.ConnectivityAttempts <= 0 {
		c.ConnectivityAttempts = 3
	}
	if c.ConnectivityDelay <= 0 {
		c.ConnectivityDelay = time.Second
	}
	if c.URLTimeout <= 0 {
		c.URLTimeout = 30 * time.Second
	}
	if c.SaveAttempts <= 0 {
		c.SaveAttempts = 3
	}
	if c.SaveDelay <= 0 {
		c.SaveDelay = time.Second
	}
	return c
}

// Deps bundles scheduler collaborators. Publisher, IDs and Clock are optional.
type Deps struct {
	Crawler   Crawler
	Sink      crawler.Sink
	Publisher Publisher
	IDs       IDGenerator
	Clock     crawler.Clock
	Logger    *zap.Logger
}

// RunOptions overrides per-run limits.
type RunOptions struct {
	// MaxURLs caps discovered URLs; zero uses Config.MaxURLsPerRun.
	MaxURLs int
}

// RecordEvent is the payload published for each saved record.
type RecordEvent struct {
	RunID  string         `json:"run_id"`
	Target string         `json:"target"`
	Record crawler.Record `json:"record"`
}

// Scheduler runs crawls target by target.
type Scheduler struct {
	cfg       Config
	crawler   Crawler
	sink      crawler.Sink
	publisher Publisher
	ids       IDGenerator
	clock     crawler.Clock
	logger    *zap.Logger
}

// New constructs a Scheduler.
func New(cfg Config, deps Deps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		crawler:   deps.Crawler,
		sink:      deps.Sink,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		clock:     clock,
		logger:    logger,
	}
}

// RunTarget crawls one target. Unknown or disabled targets and failed
// connectivity checks are returned as errors; per-URL failures only land in
// the Summary.
func (s *Scheduler) RunTarget(ctx context.Context, name string, opts RunOptions) (sum Summary, err error) {
	target, err := s.crawler.Target(name)
	if err != nil {
		return Summary{}, err
	}
	if !target.Enabled {
		return Summary{}, fmt.Errorf("%w: %q", crawler.ErrTargetDisabled, name)
	}

	sum = Summary{RunID: s.newRunID(), Target: name, StartedAt: s.clock.Now()}
	logger := s.logger.With(zap.String("run_id", sum.RunID), zap.String("target", name))
	logger.Info("crawl run started")
	defer func() {
		sum.FinishedAt = s.clock.Now()
		logger.Info("crawl run finished", sum.fields()...)
	}()

	if err := s.checkConnectivity(ctx, target, logger); err != nil {
		sum.Errors = append(sum.Errors, err.Error())
		return sum, err
	}

	limit := opts.MaxURLs
	if limit <= 0 {
		limit = s.cfg.MaxURLsPerRun
	}
	urls := DiscoverURLs(target, limit)
	logger.Debug("discovered urls", zap.Int("count", len(urls)))

	for i, u := range urls {
		if i > 0 {
			if err := crawler.Pause(ctx, target.RequestDelay); err != nil {
				sum.Errors = append(sum.Errors, fmt.Sprintf("run interrupted: %v", err))
				break
			}
		}
		res := s.crawlWithTimeout(ctx, name, u)
		if !res.Success || res.Record == nil {
			sum.FailureCount++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %s", u, res.Error))
			continue
		}
		sum.SuccessCount++
		s.persist(ctx, &sum, *res.Record, logger)
	}
	return sum, nil
}

// RunScheduled runs every enabled target with the routine URL cap.
func (s *Scheduler) RunScheduled(ctx context.Context) []Summary {
	return s.runAll(ctx, func(crawler.Target) RunOptions { return RunOptions{} })
}

// RunFullCrawl runs every enabled target capped at its max_pages.
func (s *Scheduler) RunFullCrawl(ctx context.Context) []Summary {
	return s.runAll(ctx, func(t crawler.Target) RunOptions { return RunOptions{MaxURLs: t.MaxPages} })
}

func (s *Scheduler) runAll(ctx context.Context, opts func(crawler.Target) RunOptions) []Summary {
	var out []Summary
	for _, t := range s.crawler.Targets() {
		if !t.Enabled {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		sum, err := s.RunTarget(ctx, t.Name, opts(t))
		if err != nil {
			s.logger.Error("target run failed", zap.String("target", t.Name), zap.Error(err))
		}
		if sum.RunID != "" {
			out = append(out, sum)
		}
	}
	return out
}

func (s *Scheduler) checkConnectivity(ctx context.Context, target crawler.Target, logger *zap.Logger) error {
	policy := crawler.RetryPolicy{
		MaxAttempts: s.cfg.ConnectivityAttempts,
		BaseDelay:   s.cfg.ConnectivityDelay,
		MaxDelay:    s.cfg.MaxRetryDelay,
		Logger:      logger,
	}
	err := policy.Do(ctx, "connectivity "+target.Name, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectivityTimeout)
		defer cancel()
		err := race(attemptCtx, func(c context.Context) error {
			return s.crawler.TestConnectivity(c, target.Name)
		})
		if err != nil && ctx.Err() == nil && attemptCtx.Err() != nil {
			// Attempt timeout, not run cancellation.
			return fmt.Errorf("no response within %s", s.cfg.ConnectivityTimeout)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectivity, target.Name, err)
	}
	return nil
}

// crawlWithTimeout returns whichever settles first: the crawl or the timeout.
func (s *Scheduler) crawlWithTimeout(ctx context.Context, name, rawURL string) crawler.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.URLTimeout)
	defer cancel()

	done := make(chan crawler.Result, 1)
	go func() {
		done <- s.crawler.CrawlWebsite(ctx, name, rawURL)
	}()
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		err := fmt.Errorf("%w: crawl timed out after %s", crawler.ErrFetch, s.cfg.URLTimeout)
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ctx.Err()
		}
		return crawler.Result{URL: rawURL, Error: err.Error(), Err: err}
	}
}

func (s *Scheduler) persist(ctx context.Context, sum *Summary, rec crawler.Record, logger *zap.Logger) {
	if s.sink == nil {
		return
	}
	existing, err := s.sink.FindByTitle(ctx, rec.Title)
	switch {
	case err != nil:
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("lookup %q: %v", rec.Title, err))
	case existing != nil:
		sum.DuplicateCount++
		metrics.ObserveRecord(sum.Target, outcomeDuplicate)
		logger.Debug("record already stored", zap.String("title", rec.Title))
		return
	}

	policy := crawler.RetryPolicy{
		MaxAttempts: s.cfg.SaveAttempts,
		BaseDelay:   s.cfg.SaveDelay,
		Logger:      logger,
	}
	var saved crawler.Record
	err = policy.Do(ctx, "save record", func(ctx context.Context) error {
		var serr error
		saved, serr = s.sink.Save(ctx, rec)
		return serr
	})
	if err != nil {
		metrics.ObserveRecord(sum.Target, outcomeFailed)
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("save %q: %v", rec.Title, err))
		logger.Warn("record not saved", zap.String("title", rec.Title), zap.Error(err))
		return
	}
	sum.SavedCount++
	metrics.ObserveRecord(sum.Target, outcomeSaved)
	s.announce(ctx, sum, saved, logger)
}

func (s *Scheduler) announce(ctx context.Context, sum *Summary, rec crawler.Record, logger *zap.Logger) {
	if s.publisher == nil {
		return
	}
	event := RecordEvent{RunID: sum.RunID, Target: sum.Target, Record: rec}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, event); err != nil {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("publish %q: %v", rec.Title, err))
		logger.Warn("record event not published", zap.String("title", rec.Title), zap.Error(err))
	}
}

func (s *Scheduler) newRunID() string {
	if s.ids != nil {
		if id, err := s.ids.NewID(); err == nil {
			return id
		}
	}
	return fmt.Sprintf("run-%d", s.clock.Now().UnixNano())
}

// race runs fn and returns its error, or ctx's error if ctx ends first.
func race(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

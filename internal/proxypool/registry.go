package proxypool

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const performerCount = 5

// Validator tests one proxy.
type Validator interface {
	Test(ctx context.Context, proxy Record) TestResult
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, proxy Record) TestResult

// Test calls f.
func (f ValidatorFunc) Test(ctx context.Context, proxy Record) TestResult {
	return f(ctx, proxy)
}

// Config bounds the registry.
type Config struct {
	MaxProxies            int
	MaxFailureCount       int
	ValidationConcurrency int
}

// Registry owns the proxy set and its health counters. It never holds its
// lock across a proxy test.
type Registry struct {
	mu      sync.RWMutex
	proxies map[string]*Record
	order   []string
	working []string

	cfg       Config
	validator Validator
	strategy  Strategy
	clock     Clock
	logger    *zap.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg Config, validator Validator, strategy Strategy, clock Clock, logger *zap.Logger) *Registry {
	if cfg.ValidationConcurrency <= 0 {
		cfg.ValidationConcurrency = 10
	}
	if cfg.MaxFailureCount <= 0 {
		cfg.MaxFailureCount = 3
	}
	if strategy == nil {
		strategy = bestResponseTime{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		proxies:   make(map[string]*Record),
		cfg:       cfg,
		validator: validator,
		strategy:  strategy,
		clock:     clock,
		logger:    logger,
	}
}

func (r *Registry) now() time.Time {
	if r.clock == nil {
		return time.Now().UTC()
	}
	return r.clock.Now()
}

// AddProxy merges an existing entry in place, or tests and inserts a new one.
// It reports whether the proxy is known-good (merge) or passed its first test.
// Candidates rejected before testing return a non-nil error.
func (r *Registry) AddProxy(ctx context.Context, c Candidate) (bool, error) {
	if c.Host == "" || c.Port <= 0 || c.Port > 65535 {
		return false, fmt.Errorf("%w: %s:%d", ErrInvalidCandidate, c.Host, c.Port)
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	id := c.ID()

	r.mu.Lock()
	if existing, ok := r.proxies[id]; ok {
		mergeCandidate(existing, c)
		r.mu.Unlock()
		return true, nil
	}
	if r.full() {
		r.mu.Unlock()
		return false, ErrPoolFull
	}
	r.mu.Unlock()

	rec := newRecord(c, r.now())
	result := r.validator.Test(ctx, rec)
	applyResult(&rec, result, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.proxies[id]; ok {
		// A concurrent add won the race; keep its counters.
		mergeCandidate(existing, c)
		return true, nil
	}
	if r.full() {
		return false, ErrPoolFull
	}
	r.proxies[id] = &rec
	r.order = append(r.order, id)
	r.rebuildLocked()
	r.logger.Debug("proxy added",
		zap.String("proxy_id", id),
		zap.Bool("working", result.Success),
		zap.Int64("response_time_ms", result.ResponseTimeMs),
	)
	return result.Success, nil
}

// AddProxies adds every candidate and never aborts on an individual failure.
func (r *Registry) AddProxies(ctx context.Context, candidates []Candidate) AddSummary {
	var summary AddSummary
	for _, c := range candidates {
		ok, err := r.AddProxy(ctx, c)
		if err != nil {
			r.logger.Debug("proxy rejected", zap.String("proxy_id", c.ID()), zap.Error(err))
		}
		if ok {
			summary.Success++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// TestProxy runs a single ad-hoc test without touching the registry.
func (r *Registry) TestProxy(ctx context.Context, c Candidate) TestResult {
	if c.Source == "" {
		c.Source = ManualTestSource
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	return r.validator.Test(ctx, newRecord(c, r.now()))
}

// ValidateAll re-tests every known proxy with bounded concurrency, then applies
// all results in one critical section. Proxies removed while their test was in
// flight are skipped. A cancelled context discards the cycle.
func (r *Registry) ValidateAll(ctx context.Context) (ValidationSummary, error) {
	r.mu.RLock()
	snapshot := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.proxies[id].clone())
	}
	r.mu.RUnlock()

	results := make([]TestResult, len(snapshot))
	var g errgroup.Group
	g.SetLimit(r.cfg.ValidationConcurrency)
	for i := range snapshot {
		g.Go(func() error {
			results[i] = r.safeTest(ctx, snapshot[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return ValidationSummary{}, fmt.Errorf("validate proxies: %w", err)
	}

	now := r.now()
	var summary ValidationSummary
	r.mu.Lock()
	for i, snap := range snapshot {
		rec, ok := r.proxies[snap.ID]
		if !ok {
			summary.Skipped++
			continue
		}
		applyResult(rec, results[i], now)
		summary.Tested++
		if results[i].Success {
			summary.Working++
		} else {
			summary.Failed++
		}
	}
	r.rebuildLocked()
	r.mu.Unlock()

	r.logger.Info("proxy validation complete",
		zap.Int("tested", summary.Tested),
		zap.Int("working", summary.Working),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (r *Registry) safeTest(ctx context.Context, rec Record) (result TestResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("proxy test panicked", zap.String("proxy_id", rec.ID), zap.Any("panic", p))
			result = TestResult{Success: false, Error: fmt.Sprintf("panic: %v", p)}
		}
	}()
	return r.validator.Test(ctx, rec)
}

// RemoveFailedProxies deletes every non-working proxy whose failure count has
// reached the configured maximum and returns how many were removed.
func (r *Registry) RemoveFailedProxies() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	removed := 0
	for _, id := range r.order {
		rec := r.proxies[id]
		if !rec.IsWorking && rec.FailureCount >= int64(r.cfg.MaxFailureCount) {
			delete(r.proxies, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	r.rebuildLocked()
	if removed > 0 {
		r.logger.Info("removed failed proxies", zap.Int("removed", removed), zap.Int("remaining", len(r.order)))
	}
	return removed
}

// BestProxy returns a working proxy chosen by the strategy. The protocol filter
// is advisory: when no working proxy matches, all working proxies compete.
func (r *Registry) BestProxy(preferred Protocol) (Record, bool) {
	return r.bestProxy(preferred, "")
}

// BestProxyExcluding is BestProxy that avoids exclude whenever another working
// proxy is available.
func (r *Registry) BestProxyExcluding(preferred Protocol, exclude string) (Record, bool) {
	return r.bestProxy(preferred, exclude)
}

func (r *Registry) bestProxy(preferred Protocol, exclude string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.working) == 0 {
		return Record{}, false
	}
	all := make([]Record, 0, len(r.working))
	for _, id := range r.working {
		all = append(all, *r.proxies[id])
	}
	candidates := all
	if exclude != "" && len(all) > 1 {
		candidates = filter(all, func(rec Record) bool { return rec.ID != exclude })
	}
	if preferred != "" {
		if matching := filter(candidates, func(rec Record) bool { return rec.Protocol == preferred }); len(matching) > 0 {
			candidates = matching
		}
	}
	chosen := r.strategy.Select(candidates)
	return chosen.clone(), true
}

// Get returns a copy of one proxy.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.proxies[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Proxies returns copies of all proxies in insertion order.
func (r *Registry) Proxies() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.proxies[id].clone())
	}
	return out
}

// Working returns copies of the working set, fastest first.
func (r *Registry) Working() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.working))
	for _, id := range r.working {
		out = append(out, r.proxies[id].clone())
	}
	return out
}

// Len returns the number of known proxies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// FreeCapacity returns how many more proxies fit, or -1 when unbounded.
func (r *Registry) FreeCapacity() int {
	if r.cfg.MaxProxies <= 0 {
		return -1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return max(r.cfg.MaxProxies-len(r.order), 0)
}

// StrategyName reports the active rotation strategy.
func (r *Registry) StrategyName() string {
	return r.strategy.Name()
}

// Stats aggregates counters across the pool.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalProxies:   len(r.order),
		WorkingProxies: len(r.working),
	}
	stats.FailedProxies = stats.TotalProxies - stats.WorkingProxies

	var rtSum float64
	var rtCount int
	for _, id := range r.working {
		if rt := r.proxies[id].ResponseTimeMs; rt != nil {
			rtSum += float64(*rt)
			rtCount++
		}
	}
	if rtCount > 0 {
		stats.AverageResponseTimeMs = rtSum / float64(rtCount)
	}

	ranked := make([]*Record, 0, len(r.order))
	for _, id := range r.order {
		rec := r.proxies[id]
		stats.TotalRequests += rec.TotalRequests
		stats.TotalFailures += rec.FailureCount
		if rec.TotalRequests > 0 {
			ranked = append(ranked, rec)
		}
	}
	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.TotalRequests-stats.TotalFailures) / float64(stats.TotalRequests) * 100
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].UptimePercent > ranked[j].UptimePercent
	})
	stats.TopPerformers = performers(ranked[:min(performerCount, len(ranked))])
	worst := make([]*Record, 0, performerCount)
	for i := len(ranked) - 1; i >= 0 && len(worst) < performerCount; i-- {
		worst = append(worst, ranked[i])
	}
	stats.WorstPerformers = performers(worst)
	return stats
}

func (r *Registry) full() bool {
	return r.cfg.MaxProxies > 0 && len(r.order) >= r.cfg.MaxProxies
}

// rebuildLocked recomputes the working list: working proxies by ascending
// response time, unmeasured last, ties in insertion order.
func (r *Registry) rebuildLocked() {
	working := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.proxies[id].IsWorking {
			working = append(working, id)
		}
	}
	sort.SliceStable(working, func(i, j int) bool {
		return responseTimeOrInf(*r.proxies[working[i]]) < responseTimeOrInf(*r.proxies[working[j]])
	})
	r.working = working
}

func newRecord(c Candidate, now time.Time) Record {
	return Record{
		ID:       c.ID(),
		Host:     c.Host,
		Port:     c.Port,
		Protocol: c.Protocol,
		Username: c.Username,
		Password: c.Password,
		Source:   c.Source,
		AddedAt:  now,
		Tags:     append([]string(nil), c.Tags...),
	}
}

func mergeCandidate(rec *Record, c Candidate) {
	rec.Host = c.Host
	rec.Port = c.Port
	rec.Protocol = c.Protocol
	if c.Username != "" {
		rec.Username = c.Username
		rec.Password = c.Password
	}
	for _, tag := range c.Tags {
		if !slices.Contains(rec.Tags, tag) {
			rec.Tags = append(rec.Tags, tag)
		}
	}
}

func applyResult(rec *Record, result TestResult, now time.Time) {
	if result.Success {
		rec.SuccessCount++
		rec.IsWorking = true
		rt := result.ResponseTimeMs
		rec.ResponseTimeMs = &rt
	} else {
		rec.FailureCount++
		rec.IsWorking = false
	}
	rec.TotalRequests++
	checked := now
	rec.LastChecked = &checked
	rec.recomputeUptime()
}

func performers(recs []*Record) []Performer {
	out := make([]Performer, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Performer{
			ID:             rec.ID,
			Address:        rec.Address(),
			UptimePercent:  rec.UptimePercent,
			ResponseTimeMs: rec.ResponseTimeMs,
			TotalRequests:  rec.TotalRequests,
		})
	}
	return out
}

func filter(recs []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

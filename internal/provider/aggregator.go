// Package provider pulls proxy candidates from pluggable sources and feeds
// them into the proxy registry.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// ErrProvider wraps failures of a single source.
var ErrProvider = errors.New("proxy provider failed")

// Provider is one external proxy source.
type Provider interface {
	Name() string
	Priority() int
	FetchProxies(ctx context.Context) ([]proxypool.Candidate, error)
}

// Info describes a registered provider.
type Info struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Active   bool   `json:"active"`
}

// Sink receives discovered candidates.
type Sink interface {
	AddProxies(ctx context.Context, candidates []proxypool.Candidate) proxypool.AddSummary
	FreeCapacity() int
}

// RefreshSummary reports one refresh cycle.
type RefreshSummary struct {
	Fetched   int                  `json:"fetched"`
	Unique    int                  `json:"unique"`
	Submitted int                  `json:"submitted"`
	Added     proxypool.AddSummary `json:"added"`
}

type entry struct {
	provider Provider
	active   bool
}

// Aggregator is a name-keyed set of providers.
type Aggregator struct {
	mu        sync.RWMutex
	providers map[string]*entry
	logger    *zap.Logger
}

// NewAggregator builds an empty Aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{providers: make(map[string]*entry), logger: logger}
}

// AddProvider registers p, replacing any provider with the same name.
func (a *Aggregator) AddProvider(p Provider, active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.providers[p.Name()] = &entry{provider: p, active: active}
}

// RemoveProvider unregisters name. Unknown names return false.
func (a *Aggregator) RemoveProvider(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.providers[name]; !ok {
		return false
	}
	delete(a.providers, name)
	return true
}

// ToggleProvider sets the active flag of name. Unknown names return false.
func (a *Aggregator) ToggleProvider(name string, active bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.providers[name]
	if !ok {
		return false
	}
	e.active = active
	return true
}

// Providers lists every provider ordered by priority.
func (a *Aggregator) Providers() []Info {
	return a.list(false)
}

// ProvidersByPriority lists active providers, lowest priority number first.
func (a *Aggregator) ProvidersByPriority() []Info {
	return a.list(true)
}

func (a *Aggregator) list(activeOnly bool) []Info {
	a.mu.RLock()
	out := make([]Info, 0, len(a.providers))
	for name, e := range a.providers {
		if activeOnly && !e.active {
			continue
		}
		out = append(out, Info{Name: name, Priority: e.provider.Priority(), Active: e.active})
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FetchAllProxies runs every active provider concurrently. A failing provider
// is logged and contributes an empty list.
func (a *Aggregator) FetchAllProxies(ctx context.Context) map[string][]proxypool.Candidate {
	active := a.activeProviders()
	lists := make([][]proxypool.Candidate, len(active))

	var g errgroup.Group
	for i, p := range active {
		g.Go(func() error {
			candidates, err := a.fetchOne(ctx, p)
			if err != nil {
				a.logger.Warn("proxy provider failed", zap.String("provider", p.Name()), zap.Error(err))
				candidates = []proxypool.Candidate{}
			}
			metrics.ObserveProviderCandidates(p.Name(), len(candidates))
			lists[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]proxypool.Candidate, len(active))
	for i, p := range active {
		out[p.Name()] = lists[i]
	}
	return out
}

func (a *Aggregator) fetchOne(ctx context.Context, p Provider) (candidates []proxypool.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrProvider, p.Name(), r)
		}
	}()
	candidates, err = p.FetchProxies(ctx)
	if err != nil && !errors.Is(err, ErrProvider) {
		err = fmt.Errorf("%w: %s: %w", ErrProvider, p.Name(), err)
	}
	return candidates, err
}

// Refresh fetches every active provider and submits unique candidates to sink,
// higher-priority sources first, bounded by the sink's free capacity.
func (a *Aggregator) Refresh(ctx context.Context, sink Sink) RefreshSummary {
	byName := a.FetchAllProxies(ctx)

	var summary RefreshSummary
	seen := make(map[string]struct{})
	var unique []proxypool.Candidate
	for _, info := range a.ProvidersByPriority() {
		for _, c := range byName[info.Name] {
			summary.Fetched++
			key := fmt.Sprintf("%s|%s:%d", c.Protocol, c.Host, c.Port)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			unique = append(unique, c)
		}
	}
	summary.Unique = len(unique)

	if free := sink.FreeCapacity(); free >= 0 && len(unique) > free {
		unique = unique[:free]
	}
	summary.Submitted = len(unique)
	if len(unique) > 0 {
		summary.Added = sink.AddProxies(ctx, unique)
	}
	a.logger.Info("proxy providers refreshed",
		zap.Int("fetched", summary.Fetched),
		zap.Int("unique", summary.Unique),
		zap.Int("submitted", summary.Submitted),
		zap.Int("working", summary.Added.Success),
		zap.Int("failed", summary.Added.Failed),
	)
	return summary
}

func (a *Aggregator) activeProviders() []Provider {
	infos := a.ProvidersByPriority()
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Provider, 0, len(infos))
	for _, info := range infos {
		if e, ok := a.providers[info.Name]; ok {
			out = append(out, e.provider)
		}
	}
	return out
}

package provider

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

type fakeProvider struct {
	name     string
	priority int
	entries  []string
	err      error
	panics   bool
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Priority() int { return p.priority }

func (p *fakeProvider) FetchProxies(context.Context) ([]proxypool.Candidate, error) {
	if p.panics {
		panic("scraper exploded")
	}
	if p.err != nil {
		return nil, p.err
	}
	out := make([]proxypool.Candidate, 0, len(p.entries))
	for _, raw := range p.entries {
		c, _ := ParseCandidate(raw, proxypool.ProtocolHTTP, p.name)
		out = append(out, c)
	}
	return out, nil
}

type fakeSink struct {
	mu       sync.Mutex
	free     int
	received []proxypool.Candidate
}

func (s *fakeSink) AddProxies(_ context.Context, c []proxypool.Candidate) proxypool.AddSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, c...)
	return proxypool.AddSummary{Success: len(c)}
}

func (s *fakeSink) FreeCapacity() int { return s.free }

func TestProvidersByPriorityListsActiveAscending(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zap.NewNop())
	agg.AddProvider(&fakeProvider{name: "c", priority: 3}, true)
	agg.AddProvider(&fakeProvider{name: "a", priority: 1}, true)
	agg.AddProvider(&fakeProvider{name: "b", priority: 2}, false)

	active := agg.ProvidersByPriority()
	require.Len(t, active, 2)
	require.Equal(t, "a", active[0].Name)
	require.Equal(t, "c", active[1].Name)

	require.Len(t, agg.Providers(), 3)
}

func TestToggleAndRemoveUnknownAreNoops(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil)
	agg.AddProvider(&fakeProvider{name: "a", priority: 1}, true)

	require.False(t, agg.ToggleProvider("missing", false))
	require.False(t, agg.RemoveProvider("missing"))

	require.True(t, agg.ToggleProvider("a", false))
	require.Empty(t, agg.ProvidersByPriority())
	require.True(t, agg.RemoveProvider("a"))
	require.Empty(t, agg.Providers())
}

func TestFetchAllProxiesIsolatesFailures(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zap.NewNop())
	agg.AddProvider(&fakeProvider{name: "good", priority: 1, entries: []string{"10.0.0.1:80", "10.0.0.2:80"}}, true)
	agg.AddProvider(&fakeProvider{name: "broken", priority: 2, err: errors.New("HTTP 503")}, true)
	agg.AddProvider(&fakeProvider{name: "panicky", priority: 3, panics: true}, true)
	agg.AddProvider(&fakeProvider{name: "off", priority: 4, entries: []string{"10.0.0.9:80"}}, false)

	got := agg.FetchAllProxies(context.Background())
	require.Len(t, got, 3)
	require.Len(t, got["good"], 2)
	require.NotNil(t, got["broken"])
	require.Empty(t, got["broken"])
	require.Empty(t, got["panicky"])
	_, ran := got["off"]
	require.False(t, ran)
}

func TestRefreshDedupesByPriorityAndRespectsCapacity(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zap.NewNop())
	agg.AddProvider(&fakeProvider{name: "primary", priority: 1, entries: []string{"10.0.0.1:80", "10.0.0.2:80"}}, true)
	agg.AddProvider(&fakeProvider{name: "secondary", priority: 2, entries: []string{"10.0.0.2:80", "10.0.0.3:80"}}, true)

	sink := &fakeSink{free: 2}
	summary := agg.Refresh(context.Background(), sink)

	require.Equal(t, 4, summary.Fetched)
	require.Equal(t, 3, summary.Unique)
	require.Equal(t, 2, summary.Submitted)
	require.Equal(t, 2, summary.Added.Success)
	require.Len(t, sink.received, 2)
	require.Equal(t, "primary", sink.received[1].Source)
}

func TestRefreshUnboundedSink(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zap.NewNop())
	agg.AddProvider(&fakeProvider{name: "p", priority: 1, entries: []string{"10.0.0.1:80", "10.0.0.2:80"}}, true)

	sink := &fakeSink{free: -1}
	summary := agg.Refresh(context.Background(), sink)
	require.Equal(t, 2, summary.Submitted)
}

package provider

import (
	"context"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// StaticProvider serves a fixed list of proxies from configuration.
type StaticProvider struct {
	name     string
	priority int
	entries  []string
	protocol proxypool.Protocol
}

// NewStaticProvider builds a StaticProvider.
func NewStaticProvider(name string, priority int, protocol proxypool.Protocol, entries []string) *StaticProvider {
	return &StaticProvider{
		name:     name,
		priority: priority,
		entries:  append([]string(nil), entries...),
		protocol: protocol,
	}
}

// Name returns the provider name.
func (p *StaticProvider) Name() string { return p.name }

// Priority returns the provider priority.
func (p *StaticProvider) Priority() int { return p.priority }

// FetchProxies parses the configured entries.
func (p *StaticProvider) FetchProxies(context.Context) ([]proxypool.Candidate, error) {
	out := make([]proxypool.Candidate, 0, len(p.entries))
	for _, raw := range p.entries {
		if c, ok := ParseCandidate(raw, p.protocol, p.name); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

const maxListBytes = 10 << 20

// TextListProvider downloads a plain-text list with one proxy per line.
type TextListProvider struct {
	name      string
	priority  int
	url       string
	protocol  proxypool.Protocol
	userAgent string
	client    *http.Client
}

// NewTextListProvider builds a provider for a plain-text proxy list.
func NewTextListProvider(name string, priority int, url string, protocol proxypool.Protocol, userAgent string, timeout time.Duration) *TextListProvider {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TextListProvider{
		name:      name,
		priority:  priority,
		url:       url,
		protocol:  protocol,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (p *TextListProvider) Name() string { return p.name }

// Priority returns the provider priority.
func (p *TextListProvider) Priority() int { return p.priority }

// FetchProxies downloads and parses the list.
func (p *TextListProvider) FetchProxies(ctx context.Context) ([]proxypool.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrProvider, err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrProvider, p.url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: HTTP %d", ErrProvider, p.url, resp.StatusCode)
	}
	candidates, err := ParseList(io.LimitReader(resp.Body, maxListBytes), p.protocol, p.name)
	if err != nil {
		return candidates, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return candidates, nil
}

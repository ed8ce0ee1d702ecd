package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// HTMLTableConfig locates proxies on an HTML listing page.
type HTMLTableConfig struct {
	Name         string
	Priority     int
	URL          string
	Protocol     proxypool.Protocol
	UserAgent    string
	Timeout      time.Duration
	RowSelector  string
	HostSelector string
	PortSelector string
}

// HTMLTableProvider scrapes host and port cells from a table of proxies.
type HTMLTableProvider struct {
	cfg HTMLTableConfig
}

// NewHTMLTableProvider builds an HTMLTableProvider with column defaults.
func NewHTMLTableProvider(cfg HTMLTableConfig) *HTMLTableProvider {
	if cfg.RowSelector == "" {
		cfg.RowSelector = "table tbody tr"
	}
	if cfg.HostSelector == "" {
		cfg.HostSelector = "td:nth-child(1)"
	}
	if cfg.PortSelector == "" {
		cfg.PortSelector = "td:nth-child(2)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &HTMLTableProvider{cfg: cfg}
}

// Name returns the provider name.
func (p *HTMLTableProvider) Name() string { return p.cfg.Name }

// Priority returns the provider priority.
func (p *HTMLTableProvider) Priority() int { return p.cfg.Priority }

// FetchProxies visits the listing page and parses each row.
func (p *HTMLTableProvider) FetchProxies(ctx context.Context) ([]proxypool.Candidate, error) {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(p.cfg.Timeout)
	if p.cfg.UserAgent != "" {
		c.UserAgent = p.cfg.UserAgent
	}

	var (
		mu         sync.Mutex
		candidates []proxypool.Candidate
		fetchErr   error
	)
	c.OnHTML(p.cfg.RowSelector, func(e *colly.HTMLElement) {
		host := strings.TrimSpace(e.ChildText(p.cfg.HostSelector))
		port := strings.TrimSpace(e.ChildText(p.cfg.PortSelector))
		if cand, ok := ParseCandidate(host+":"+port, p.cfg.Protocol, p.cfg.Name); ok {
			mu.Lock()
			candidates = append(candidates, cand)
			mu.Unlock()
		}
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(p.cfg.URL)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrProvider, p.cfg.Name, ctx.Err())
	case err := <-done:
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			return nil, fmt.Errorf("%w: visit %s: %w", ErrProvider, p.cfg.URL, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	return candidates, nil
}

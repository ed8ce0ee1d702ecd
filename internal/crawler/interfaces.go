package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx
// responses are errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ProxyPicker hands out proxies and learns from request outcomes.
type ProxyPicker interface {
	Next(preferred proxypool.Protocol) (proxypool.Record, bool)
	ReportOutcome(proxyID string, success bool)
}

// ResultCache stores parsed records by key.
type ResultCache interface {
	Get(key string) (Record, bool)
	Set(key string, record Record)
}

// RobotsPolicy decides whether robots.txt permits a URL.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Sink persists crawled records.
type Sink interface {
	FindByTitle(ctx context.Context, title string) (*Record, error)
	Save(ctx context.Context, record Record) (Record, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

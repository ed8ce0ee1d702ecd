package crawler

import "time"

// Options carries the orchestrator's crawl knobs.
type Options struct {
	UserAgent             string
	RequestTimeout        time.Duration
	UseProxy              bool
	MaxConcurrentRequests int
	BatchDelay            time.Duration
	MaxDescriptionLength  int
	BlockedDomains        []string
	DisallowedPaths       []string
	DisallowedExtensions  []string
	// Retry governs page fetches. The zero value fetches once.
	Retry RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.MaxConcurrentRequests <= 0 {
		o.MaxConcurrentRequests = 5
	}
	if o.MaxDescriptionLength <= 0 {
		o.MaxDescriptionLength = 5000
	}
	return o
}

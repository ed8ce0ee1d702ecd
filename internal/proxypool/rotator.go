package proxypool

import (
	"sync"

	"go.uber.org/zap"
)

type picker interface {
	BestProxy(preferred Protocol) (Record, bool)
	BestProxyExcluding(preferred Protocol, exclude string) (Record, bool)
	Get(id string) (Record, bool)
}

// RotatorConfig controls sticky rotation.
type RotatorConfig struct {
	// SwitchAfter is the number of requests served by one proxy before rotating.
	// Zero or less asks the strategy on every request.
	SwitchAfter int
	// FailureThreshold is the number of consecutive failures that force a rotation.
	FailureThreshold int
}

// Rotator keeps a current proxy for a bounded number of requests and rotates
// away from it after repeated failures.
type Rotator struct {
	mu       sync.Mutex
	pool     picker
	cfg      RotatorConfig
	logger   *zap.Logger
	current  string
	uses     int
	failures int
}

// NewRotator wraps a registry with sticky rotation.
func NewRotator(pool picker, cfg RotatorConfig, logger *zap.Logger) *Rotator {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{pool: pool, cfg: cfg, logger: logger}
}

// Next returns the proxy for the next request.
func (r *Rotator) Next(preferred Protocol) (Record, bool) {
	if r.cfg.SwitchAfter <= 0 {
		return r.pool.BestProxy(preferred)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != "" && r.uses < r.cfg.SwitchAfter && r.failures < r.cfg.FailureThreshold {
		if rec, ok := r.pool.Get(r.current); ok && rec.IsWorking {
			r.uses++
			return rec, true
		}
	}

	rec, ok := r.pool.BestProxyExcluding(preferred, r.current)
	if !ok {
		r.current, r.uses, r.failures = "", 0, 0
		return Record{}, false
	}
	if rec.ID != r.current {
		r.logger.Debug("rotating proxy", zap.String("from", r.current), zap.String("to", rec.ID))
	}
	r.current, r.uses, r.failures = rec.ID, 1, 0
	return rec, true
}

// ReportOutcome records the result of a request made through proxyID.
func (r *Rotator) ReportOutcome(proxyID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if proxyID == "" || proxyID != r.current {
		return
	}
	if success {
		r.failures = 0
		return
	}
	r.failures++
}

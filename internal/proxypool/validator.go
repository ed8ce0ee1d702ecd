package proxypool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/metrics"
)

const maxProbeBody = 64 << 10

// HTTPValidator tests a proxy with one GET to a fixed URL.
type HTTPValidator struct {
	testURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPValidator builds a validator for testURL.
func NewHTTPValidator(testURL string, timeout time.Duration, logger *zap.Logger) *HTTPValidator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPValidator{testURL: testURL, timeout: timeout, logger: logger}
}

// Test reports success when the proxied request completes with a 2xx or 3xx
// status inside the timeout. Redirects are not followed.
func (v *HTTPValidator) Test(ctx context.Context, rec Record) TestResult {
	start := time.Now()
	result := v.probe(ctx, rec)
	elapsed := time.Since(start)
	result.ResponseTimeMs = elapsed.Milliseconds()
	metrics.ObserveProxyCheck(result.Success, elapsed)
	if !result.Success {
		v.logger.Debug("proxy test failed", zap.String("proxy_id", rec.ID), zap.String("error", result.Error))
	}
	return result
}

func (v *HTTPValidator) probe(ctx context.Context, rec Record) TestResult {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tr, err := NewTransport(rec, TransportOptions{Timeout: v.timeout, InsecureSkipVerify: true})
	if err != nil {
		return TestResult{Error: err.Error()}
	}
	defer tr.CloseIdleConnections()

	client := &http.Client{
		Transport: tr,
		Timeout:   v.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.testURL, nil)
	if err != nil {
		return TestResult{Error: fmt.Sprintf("build request: %v", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return TestResult{Error: err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck // body is drained best-effort
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return TestResult{Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	return TestResult{Success: true}
}

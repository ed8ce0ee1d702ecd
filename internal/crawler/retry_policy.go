package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries an operation with linear backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps Backoff; zero means uncapped.
	MaxDelay time.Duration
	Logger   *zap.Logger
}

// ShouldRetry decides whether another attempt follows a failed one.
// attempt is the 1-based number of the attempt that just failed. Timeouts
// reported by the operation itself are retryable; Do checks the caller's
// context separately.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.attempts() {
		return false
	}
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrParse) &&
		!errors.Is(err, ErrUnknownTarget) && !errors.Is(err, ErrTargetDisabled)
}

// Backoff returns the wait before the attempt after the given one.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, ShouldRetry refuses, or ctx ends. The last
// error from fn is returned.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w (last error: %w)", op, ctxErr, err)
		}
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		delay := p.Backoff(attempt)
		logger.Warn("retrying operation",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.attempts()),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if perr := Pause(ctx, delay); perr != nil {
			return fmt.Errorf("%s: %w (last error: %w)", op, perr, err)
		}
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

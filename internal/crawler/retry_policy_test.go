package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffIsLinearAndCapped(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
	require.Equal(t, 100*time.Millisecond, p.Backoff(1))
	require.Equal(t, 200*time.Millisecond, p.Backoff(2))
	require.Equal(t, 250*time.Millisecond, p.Backoff(3))
	require.Equal(t, 100*time.Millisecond, p.Backoff(0))
}

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 3}
	boom := errors.New("connection reset")

	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(boom, 1))
	require.True(t, p.ShouldRetry(boom, 2))
	require.False(t, p.ShouldRetry(boom, 3))
	require.True(t, p.ShouldRetry(fmt.Errorf("%w: dial: %w", ErrFetch, context.DeadlineExceeded), 1))
	require.False(t, p.ShouldRetry(fmt.Errorf("bad: %w", ErrParse), 1))
}

func TestDoReturnsLastErrorAfterExhaustion(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "save", func(context.Context) error {
		calls++
		return fmt.Errorf("attempt %d failed", calls)
	})
	require.EqualError(t, err, "attempt 3 failed")
	require.Equal(t, 3, calls)
}

func TestDoStopsOnSuccess(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "connect", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("refused")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoAbortsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
	err := p.Do(ctx, "connect", func(context.Context) error {
		cancel()
		return errors.New("refused")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDoRetriesOperationTimeouts(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "connect", func(context.Context) error {
		calls++
		return fmt.Errorf("%w: client timeout: %w", ErrFetch, context.DeadlineExceeded)
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 3, calls)
}

func TestDoStopsWhenCallerDeadlinePasses(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(ctx, "save", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, calls)
}

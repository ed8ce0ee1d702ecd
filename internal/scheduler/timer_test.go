package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTimerAddValidation(t *testing.T) {
	t.Parallel()

	tm := NewTimer(zap.NewNop())
	require.NoError(t, tm.Add("disabled", "", func(context.Context) {}))
	require.Error(t, tm.Add("bad", "not a cron spec", func(context.Context) {}))
	require.NoError(t, tm.Add("metrics", "@every 1m", func(context.Context) {}))
	require.Error(t, tm.Add("metrics", "@every 5m", func(context.Context) {}))

	jobs := tm.Jobs()
	require.Len(t, jobs, 1)
	require.Contains(t, jobs, "metrics")
}

func TestTimerRunsJobsAndStops(t *testing.T) {
	t.Parallel()

	tm := NewTimer(nil)
	ran := make(chan struct{}, 1)
	stopped := make(chan struct{})
	require.NoError(t, tm.Add("tick", "@every 1s", func(ctx context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
		<-ctx.Done()
		close(stopped)
	}))
	tm.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tm.Stop(ctx))
	<-stopped
}

func TestTimerRunNowSharesSkipGuard(t *testing.T) {
	t.Parallel()

	tm := NewTimer(zap.NewNop())
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, tm.Add("health_check", "@every 1h", func(context.Context) {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
	}))
	require.ErrorIs(t, tm.RunNow("missing"), ErrUnscheduled)

	first := make(chan error, 1)
	go func() { first <- tm.RunNow("health_check") }()
	<-started

	// The first run still holds the job, so this one is skipped.
	require.NoError(t, tm.RunNow("health_check"))
	require.Equal(t, int32(1), runs.Load())

	close(release)
	require.NoError(t, <-first)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tm.Stop(ctx))
	err := tm.RunNow("health_check")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), runs.Load())
}

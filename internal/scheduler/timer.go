package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrUnscheduled is returned by RunNow for names with no cron entry.
var ErrUnscheduled = errors.New("job not scheduled")

// Job is a unit of scheduled work.
type Job func(ctx context.Context)

// Timer invokes jobs on cron specs. A job still running when its next tick
// arrives is skipped for that tick.
type Timer struct {
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
	manual  sync.WaitGroup
}

// NewTimer builds a stopped Timer.
func NewTimer(logger *zap.Logger) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Timer{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name. An empty spec leaves the job unscheduled.
func (t *Timer) Add(name, spec string, job Job) error {
	if spec == "" {
		t.logger.Info("job disabled", zap.String("job", name))
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.entries[name]; dup {
		return fmt.Errorf("job %q already scheduled", name)
	}
	id, err := t.cron.AddFunc(spec, func() {
		t.logger.Debug("job started", zap.String("job", name))
		job(t.ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	t.entries[name] = id
	return nil
}

// Jobs lists scheduled job names with their next run.
func (t *Timer) Jobs() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.entries))
	for name, id := range t.entries {
		out[name] = t.cron.Entry(id).Next.String()
	}
	return out
}

// RunNow runs the named job once on the caller's goroutine, through the
// same wrapper as its scheduled runs: if the job is already running, the
// call is skipped.
func (t *Timer) RunNow(name string) error {
	t.mu.Lock()
	id, ok := t.entries[name]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnscheduled, name)
	}
	if err := t.ctx.Err(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("timer stopped: %w", err)
	}
	t.manual.Add(1)
	t.mu.Unlock()
	defer t.manual.Done()

	if job := t.cron.Entry(id).WrappedJob; job != nil {
		job.Run()
	}
	return nil
}

// Start begins dispatching in the background.
func (t *Timer) Start() {
	t.cron.Start()
}

// Stop prevents new runs, cancels the jobs' context and waits for running
// jobs to return or ctx to end.
func (t *Timer) Stop(ctx context.Context) error {
	done := t.cron.Stop()
	t.mu.Lock()
	t.cancel()
	t.mu.Unlock()
	manual := make(chan struct{})
	go func() {
		t.manual.Wait()
		close(manual)
	}()
	for _, ch := range []<-chan struct{}{done.Done(), manual} {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append([]any{"error", err}, keysAndValues...)...)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/app"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled jobs and the ops HTTP server",
		Long: `Starts the cron timer (crawls, proxy health checks, metrics, provider
refreshes, cache sweeps) and serves /healthz, /readyz, /metrics and the
/v1 pool endpoints until SIGINT or SIGTERM.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.Config()
	logger := a.Logger()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	timer := scheduler.NewTimer(logger.Named("timer"))
	if err := a.RegisterJobs(timer); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	if cfg.Pool.Enabled {
		go func() {
			// Through the timer so it cannot overlap a scheduled health check.
			if err := timer.RunNow(app.JobHealthCheck); !errors.Is(err, scheduler.ErrUnscheduled) {
				return
			}
			if _, err := a.HealthCheck(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("initial health check failed", zap.Error(err))
			}
		}()
	}
	timer.Start()
	logger.Info("scheduler started", zap.Any("jobs", timer.Jobs()))

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := timer.Stop(shutdownCtx); err != nil {
		logger.Warn("jobs still running at shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

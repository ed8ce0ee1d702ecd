package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/monitor"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/provider"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// Health scores the proxy pool.
type Health interface {
	HealthScore(now time.Time) int
	HealthReport(now time.Time) monitor.Report
}

// PoolStats reports registry statistics.
type PoolStats interface {
	Stats() proxypool.Stats
}

// Providers lists registered proxy providers.
type Providers interface {
	Providers() []provider.Info
}

// Clock supplies the evaluation time for health checks.
type Clock interface {
	Now() time.Time
}

// Options tunes the server.
type Options struct {
	PoolEnabled    bool
	ReadyThreshold int
	RequestTimeout time.Duration
}

// Deps bundles the read models behind the routes. Providers is optional.
type Deps struct {
	Health    Health
	Stats     PoolStats
	Providers Providers
	Clock     Clock
	Logger    *zap.Logger
}

// Server wires HTTP handlers to the pool read models.
type Server struct {
	router    chi.Router
	health    Health
	stats     PoolStats
	providers Providers
	clock     Clock
	opts      Options
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options, deps Deps) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = utcClock{}
	}
	s := &Server{
		health:    deps.Health,
		stats:     deps.Stats,
		providers: deps.Providers,
		clock:     clock,
		opts:      opts,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pool/health", s.poolHealth)
		r.Get("/pool/stats", s.poolStats)
		r.Get("/providers", s.listProviders)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.opts.PoolEnabled || s.health == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	score := s.health.HealthScore(s.clock.Now())
	body := map[string]any{"health_score": score, "threshold": s.opts.ReadyThreshold}
	if score < s.opts.ReadyThreshold {
		body["status"] = "degraded"
		s.writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) poolHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		s.writeError(w, http.StatusNotFound, "pool monitoring disabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.health.HealthReport(s.clock.Now()))
}

func (s *Server) poolStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		s.writeError(w, http.StatusNotFound, "proxy pool disabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) listProviders(w http.ResponseWriter, _ *http.Request) {
	list := []provider.Info{}
	if s.providers != nil {
		list = s.providers.Providers()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": list})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID stored by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeJSON(logger, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(s.logger, w, status, payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(s.logger, w, status, map[string]string{"error": msg})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

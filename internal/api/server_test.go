package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/monitor"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/provider"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

type fakeHealth struct {
	score  int
	report monitor.Report
}

func (f *fakeHealth) HealthScore(time.Time) int { return f.score }

func (f *fakeHealth) HealthReport(time.Time) monitor.Report { return f.report }

type fakeStats struct{ stats proxypool.Stats }

func (f fakeStats) Stats() proxypool.Stats { return f.stats }

type fakeProviders []provider.Info

func (f fakeProviders) Providers() []provider.Info { return f }

func newTestServer(health *fakeHealth, poolEnabled bool) *Server {
	return NewServer(
		Options{PoolEnabled: poolEnabled, ReadyThreshold: 40},
		Deps{
			Health:    health,
			Stats:     fakeStats{stats: proxypool.Stats{TotalProxies: 3, WorkingProxies: 2}},
			Providers: fakeProviders{{Name: "primary", Priority: 1, Active: true}},
			Logger:    zap.NewNop(),
		},
	)
}

func serve(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(&fakeHealth{}, true), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		score       int
		poolEnabled bool
		want        int
	}{
		{name: "healthy pool", score: 80, poolEnabled: true, want: http.StatusOK},
		{name: "at threshold", score: 40, poolEnabled: true, want: http.StatusOK},
		{name: "degraded pool", score: 39, poolEnabled: true, want: http.StatusServiceUnavailable},
		{name: "pool disabled", score: 0, poolEnabled: false, want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(newTestServer(&fakeHealth{score: tc.score}, tc.poolEnabled), "/readyz")
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestServer_PoolHealth(t *testing.T) {
	t.Parallel()

	health := &fakeHealth{report: monitor.Report{Score: 72, Status: monitor.Status(72)}}
	rec := serve(newTestServer(health, true), "/v1/pool/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var got monitor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 72, got.Score)
	require.Equal(t, monitor.Status(72), got.Status)
}

func TestServer_PoolHealthDisabled(t *testing.T) {
	t.Parallel()

	s := NewServer(Options{}, Deps{})
	require.Equal(t, http.StatusNotFound, serve(s, "/v1/pool/health").Code)
	require.Equal(t, http.StatusNotFound, serve(s, "/v1/pool/stats").Code)
	rec := serve(s, "/v1/providers")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"providers":[]}`, rec.Body.String())
}

func TestServer_PoolStatsAndProviders(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeHealth{}, true)

	rec := serve(s, "/v1/pool/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats proxypool.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 3, stats.TotalProxies)
	require.Equal(t, 2, stats.WorkingProxies)

	rec = serve(s, "/v1/providers")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"primary"`)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeHealth{}, true)
	_ = serve(s, "/healthz")
	rec := serve(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}

func TestServer_RequestIDPropagates(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	newTestServer(&fakeHealth{}, true).Handler().ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

package monitor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

const (
	// DefaultHistorySize holds one day of minute samples.
	DefaultHistorySize = 1440

	dedupWindow     = 30 * time.Minute
	alertRetention  = 24 * time.Hour
	activeWindow    = time.Hour
	lowWorkingLimit = 5
)

// StatsSource exposes pool statistics.
type StatsSource interface {
	Stats() proxypool.Stats
}

// Config controls the monitor.
type Config struct {
	Enabled           bool
	HistorySize       int
	MinWorkingProxies int
}

// Monitor samples a StatsSource and evaluates alert rules.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	pool    StatsSource
	logger  *zap.Logger
	history *ring
	alerts  []Alert
}

// New builds a Monitor over pool.
func New(cfg Config, pool StatsSource, logger *zap.Logger) *Monitor {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.MinWorkingProxies <= 0 {
		cfg.MinWorkingProxies = lowWorkingLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:     cfg,
		pool:    pool,
		logger:  logger,
		history: newRing(cfg.HistorySize),
	}
}

// CollectMetrics records a snapshot taken at now, evaluates alert rules and
// publishes gauges. It does nothing when the monitor is disabled.
func (m *Monitor) CollectMetrics(now time.Time) (Snapshot, bool) {
	if !m.cfg.Enabled {
		return Snapshot{}, false
	}
	stats := m.pool.Stats()
	snap := Snapshot{
		Timestamp:             now,
		TotalProxies:          stats.TotalProxies,
		WorkingProxies:        stats.WorkingProxies,
		FailedProxies:         stats.FailedProxies,
		AverageResponseTimeMs: stats.AverageResponseTimeMs,
		SuccessRate:           stats.SuccessRate,
		TotalRequests:         stats.TotalRequests,
		TotalFailures:         stats.TotalFailures,
		TopPerformers:         stats.TopPerformers,
		WorstPerformers:       stats.WorstPerformers,
	}

	m.mu.Lock()
	if prev, ok := m.history.last(); ok {
		snap.RequestsPerMinute = requestsPerMinute(prev, snap)
	}
	m.history.push(snap)
	raised := m.evaluateLocked(snap, now)
	m.pruneLocked(now)
	score := m.scoreLocked(stats, now)
	m.mu.Unlock()

	metrics.SetPoolSize(snap.TotalProxies, snap.WorkingProxies, snap.FailedProxies)
	metrics.SetHealthScore(score)
	for _, a := range raised {
		metrics.ObserveAlert(string(a.Type), string(a.Severity))
		m.logger.Warn("proxy pool alert",
			zap.String("type", string(a.Type)),
			zap.String("severity", string(a.Severity)),
			zap.String("message", a.Message),
		)
	}
	if now.Minute()%10 == 0 {
		m.logger.Info("proxy pool summary",
			zap.Int("total", snap.TotalProxies),
			zap.Int("working", snap.WorkingProxies),
			zap.Float64("success_rate", round2(snap.SuccessRate)),
			zap.Float64("avg_response_ms", round2(snap.AverageResponseTimeMs)),
			zap.Float64("requests_per_minute", round2(snap.RequestsPerMinute)),
			zap.Int("health_score", score),
		)
	}
	return snap, true
}

// requestsPerMinute is the request delta since the previous snapshot;
// collection runs once a minute.
func requestsPerMinute(prev, cur Snapshot) float64 {
	return float64(max(cur.TotalRequests-prev.TotalRequests, 0))
}

func (m *Monitor) evaluateLocked(s Snapshot, now time.Time) []Alert {
	var candidates []Alert
	if s.WorkingProxies < lowWorkingLimit {
		sev := SeverityHigh
		if s.WorkingProxies < 2 {
			sev = SeverityCritical
		}
		candidates = append(candidates, Alert{
			Type:     AlertLowWorkingProxies,
			Severity: sev,
			Message:  fmt.Sprintf("only %d working proxies", s.WorkingProxies),
			Metadata: map[string]any{"working": s.WorkingProxies, "total": s.TotalProxies},
		})
	}
	if s.SuccessRate < 70 && s.TotalRequests > 10 {
		sev := SeverityMedium
		if s.SuccessRate < 50 {
			sev = SeverityHigh
		}
		candidates = append(candidates, Alert{
			Type:     AlertHighFailureRate,
			Severity: sev,
			Message:  fmt.Sprintf("success rate %.1f%% over %d requests", s.SuccessRate, s.TotalRequests),
			Metadata: map[string]any{"success_rate": s.SuccessRate, "total_requests": s.TotalRequests},
		})
	}
	if s.AverageResponseTimeMs > 10000 && s.WorkingProxies > 0 {
		sev := SeverityMedium
		if s.AverageResponseTimeMs > 20000 {
			sev = SeverityHigh
		}
		candidates = append(candidates, Alert{
			Type:     AlertSlowResponse,
			Severity: sev,
			Message:  fmt.Sprintf("average response time %.0fms", s.AverageResponseTimeMs),
			Metadata: map[string]any{"average_response_time_ms": s.AverageResponseTimeMs},
		})
	}
	if s.TotalProxies == 0 {
		candidates = append(candidates, Alert{
			Type:     AlertPoolEmpty,
			Severity: SeverityCritical,
			Message:  "proxy pool is empty",
		})
	}

	var raised []Alert
	for _, a := range candidates {
		if m.raisedWithinLocked(a.Type, now, dedupWindow) {
			continue
		}
		a.Timestamp = now
		m.alerts = append(m.alerts, a)
		raised = append(raised, a)
	}
	return raised
}

func (m *Monitor) raisedWithinLocked(t AlertType, now time.Time, window time.Duration) bool {
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if a.Type == t && now.Sub(a.Timestamp) < window {
			return true
		}
	}
	return false
}

func (m *Monitor) pruneLocked(now time.Time) {
	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if now.Sub(a.Timestamp) <= alertRetention {
			kept = append(kept, a)
		}
	}
	m.alerts = kept
}

// HealthScore combines working ratio, success rate, latency and recent
// alert severity into a score in [0, 100].
func (m *Monitor) HealthScore(now time.Time) int {
	stats := m.pool.Stats()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreLocked(stats, now)
}

func (m *Monitor) scoreLocked(stats proxypool.Stats, now time.Time) int {
	score := 100.0
	ratio := 0.0
	if stats.TotalProxies > 0 {
		ratio = float64(stats.WorkingProxies) / float64(stats.TotalProxies)
	}
	score -= (1 - ratio) * 40

	score -= (100 - stats.SuccessRate) * 0.3

	switch avg := stats.AverageResponseTimeMs; {
	case avg > 10000:
		score -= 20
	case avg > 5000:
		score -= 10
	case avg > 2000:
		score -= 5
	}

	for _, a := range m.alerts {
		if now.Sub(a.Timestamp) > activeWindow {
			continue
		}
		switch a.Severity {
		case SeverityCritical:
			score -= 10
		case SeverityHigh:
			score -= 5
		case SeverityMedium:
			score -= 2
		}
	}
	return int(math.Round(min(max(score, 0), 100)))
}

// Status maps a score to its label.
func Status(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 60:
		return "fair"
	case score >= 40:
		return "poor"
	default:
		return "critical"
	}
}

// HealthReport summarizes the pool for operators.
func (m *Monitor) HealthReport(now time.Time) Report {
	stats := m.pool.Stats()
	m.mu.Lock()
	defer m.mu.Unlock()

	score := m.scoreLocked(stats, now)
	report := Report{
		GeneratedAt:  now,
		Score:        score,
		Status:       Status(score),
		AlertCounts:  map[Severity]int{SeverityLow: 0, SeverityMedium: 0, SeverityHigh: 0, SeverityCritical: 0},
		ActiveAlerts: m.activeLocked(now),
	}
	if last, ok := m.history.last(); ok {
		report.Latest = &last
	}
	for _, a := range m.alerts {
		if now.Sub(a.Timestamp) <= alertRetention {
			report.AlertCounts[a.Severity]++
		}
	}
	report.Recommendations = m.recommend(stats, report)
	return report
}

func (m *Monitor) recommend(stats proxypool.Stats, report Report) []string {
	var out []string
	if stats.TotalProxies == 0 {
		out = append(out, "Proxy pool is empty: check that at least one provider is active and reachable.")
	} else if stats.WorkingProxies < m.cfg.MinWorkingProxies {
		out = append(out, fmt.Sprintf("Only %d working proxies: enable more providers or raise pool.max_proxies.", stats.WorkingProxies))
	}
	if stats.TotalRequests > 10 && stats.SuccessRate < 70 {
		out = append(out, "Success rate is low: remove failing proxies and refresh from providers.")
	}
	if stats.AverageResponseTimeMs > 5000 {
		out = append(out, "Responses are slow: prefer the best-response-time rotation strategy or faster providers.")
	}
	if n := report.AlertCounts[SeverityCritical]; n > 0 {
		out = append(out, fmt.Sprintf("%d critical alerts in the last 24h need attention.", n))
	}
	if len(out) == 0 {
		out = append(out, "Proxy pool is healthy.")
	}
	return out
}

// History returns up to limit of the newest snapshots, oldest first.
func (m *Monitor) History(limit int) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.tail(limit)
}

// ActiveAlerts returns alerts raised within the last hour.
func (m *Monitor) ActiveAlerts(now time.Time) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(now)
}

func (m *Monitor) activeLocked(now time.Time) []Alert {
	out := []Alert{}
	for _, a := range m.alerts {
		if now.Sub(a.Timestamp) <= activeWindow {
			out = append(out, a)
		}
	}
	return out
}

// Alerts returns every retained alert, oldest first.
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.alerts...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

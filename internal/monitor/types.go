// Package monitor keeps a rolling history of proxy pool health, raises
// de-duplicated alerts and derives a 0-100 health score.
package monitor

import (
	"time"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// AlertType names a health rule.
type AlertType string

// Alert types.
const (
	AlertLowWorkingProxies AlertType = "low_working_proxies"
	AlertHighFailureRate   AlertType = "high_failure_rate"
	AlertSlowResponse      AlertType = "slow_response"
	AlertPoolEmpty         AlertType = "pool_empty"
)

// Severity grades an alert.
type Severity string

// Severities, least to most urgent.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Snapshot is one sample of pool statistics.
type Snapshot struct {
	Timestamp             time.Time             `json:"timestamp"`
	TotalProxies          int                   `json:"total_proxies"`
	WorkingProxies        int                   `json:"working_proxies"`
	FailedProxies         int                   `json:"failed_proxies"`
	AverageResponseTimeMs float64               `json:"average_response_time_ms"`
	SuccessRate           float64               `json:"success_rate"`
	TotalRequests         int64                 `json:"total_requests"`
	TotalFailures         int64                 `json:"total_failures"`
	RequestsPerMinute     float64               `json:"requests_per_minute"`
	TopPerformers         []proxypool.Performer `json:"top_performers"`
	WorstPerformers       []proxypool.Performer `json:"worst_performers"`
}

// Alert is a raised health rule.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Report is the operator-facing health summary.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Score           int              `json:"score"`
	Status          string           `json:"status"`
	Latest          *Snapshot        `json:"latest,omitempty"`
	AlertCounts     map[Severity]int `json:"alert_counts"`
	ActiveAlerts    []Alert          `json:"active_alerts"`
	Recommendations []string         `json:"recommendations"`
}

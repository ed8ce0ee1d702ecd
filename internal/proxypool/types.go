// Package proxypool tracks outbound proxies, health-checks them and selects
// one per request under a rotation strategy.
package proxypool

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrPoolFull reports that the registry is at its configured capacity.
	ErrPoolFull = errors.New("proxy pool is full")
	// ErrUnsupportedProtocol reports a protocol the transports cannot dial.
	ErrUnsupportedProtocol = errors.New("unsupported proxy protocol")
	// ErrInvalidCandidate reports a candidate without a usable host or port.
	ErrInvalidCandidate = errors.New("invalid proxy candidate")
)

// ManualTestSource tags proxies tested on demand rather than discovered by a provider.
const ManualTestSource = "manual_test"

// Protocol names the proxy wire protocol.
type Protocol string

// Supported protocols.
const (
	ProtocolHTTP   Protocol = "http"
	ProtocolHTTPS  Protocol = "https"
	ProtocolSOCKS4 Protocol = "socks4"
	ProtocolSOCKS5 Protocol = "socks5"
)

// ParseProtocol normalizes a protocol name. Empty input means http.
func ParseProtocol(raw string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return ProtocolHTTP, nil
	case ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS4, ProtocolSOCKS5:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProtocol, raw)
	}
}

// Candidate is a proxy observed by a provider or supplied by an operator.
type Candidate struct {
	Host     string
	Port     int
	Protocol Protocol
	Username string
	Password string
	Source   string
	Tags     []string
}

// ID returns the stable registry key for the candidate.
func (c Candidate) ID() string {
	return proxyID(c.Source, c.Host, c.Port)
}

func proxyID(source, host string, port int) string {
	return source + ":" + host + ":" + strconv.Itoa(port)
}

// Record is the registry's view of one proxy and its health counters.
type Record struct {
	ID             string     `json:"id"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Protocol       Protocol   `json:"protocol"`
	Username       string     `json:"-"`
	Password       string     `json:"-"`
	Source         string     `json:"source"`
	AddedAt        time.Time  `json:"added_at"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
	IsWorking      bool       `json:"is_working"`
	ResponseTimeMs *int64     `json:"response_time_ms,omitempty"`
	SuccessCount   int64      `json:"success_count"`
	FailureCount   int64      `json:"failure_count"`
	TotalRequests  int64      `json:"total_requests"`
	UptimePercent  float64    `json:"uptime_percent"`
	Tags           []string   `json:"tags,omitempty"`
}

// Address returns host:port.
func (r Record) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// URL returns the proxy URL including credentials when present.
func (r Record) URL() *url.URL {
	scheme := string(r.Protocol)
	if scheme == "" {
		scheme = string(ProtocolHTTP)
	}
	u := &url.URL{Scheme: scheme, Host: r.Address()}
	if r.Username != "" {
		u.User = url.UserPassword(r.Username, r.Password)
	}
	return u
}

func (r *Record) recomputeUptime() {
	denom := r.SuccessCount + r.FailureCount
	if denom == 0 {
		r.UptimePercent = 0
		return
	}
	r.UptimePercent = float64(r.SuccessCount) / float64(denom) * 100
}

func (r *Record) clone() Record {
	out := *r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	return out
}

// TestResult is the outcome of one test request through a proxy.
type TestResult struct {
	Success        bool   `json:"success"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// Performer summarizes one proxy for the top/bottom rankings.
type Performer struct {
	ID             string  `json:"id"`
	Address        string  `json:"address"`
	UptimePercent  float64 `json:"uptime_percent"`
	ResponseTimeMs *int64  `json:"response_time_ms,omitempty"`
	TotalRequests  int64   `json:"total_requests"`
}

// Stats aggregates the registry's counters.
type Stats struct {
	TotalProxies          int         `json:"total_proxies"`
	WorkingProxies        int         `json:"working_proxies"`
	FailedProxies         int         `json:"failed_proxies"`
	AverageResponseTimeMs float64     `json:"average_response_time_ms"`
	SuccessRate           float64     `json:"success_rate"`
	TotalRequests         int64       `json:"total_requests"`
	TotalFailures         int64       `json:"total_failures"`
	TopPerformers         []Performer `json:"top_performers"`
	WorstPerformers       []Performer `json:"worst_performers"`
}

// AddSummary counts the outcome of a bulk add.
type AddSummary struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ValidationSummary counts the outcome of one validation cycle.
type ValidationSummary struct {
	Tested  int `json:"tested"`
	Working int `json:"working"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

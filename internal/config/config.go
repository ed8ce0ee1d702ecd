// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Pool        PoolConfig        `mapstructure:"pool"`
	Rotation    RotationConfig    `mapstructure:"rotation"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Providers   []ProviderConfig  `mapstructure:"providers"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Publisher   PublisherConfig   `mapstructure:"publisher"`
	Targets     []crawler.Target  `mapstructure:"targets"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// PoolConfig governs proxy pool size and health checking.
type PoolConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	MaxProxies            int           `mapstructure:"max_proxies"`
	MinWorkingProxies     int           `mapstructure:"min_working_proxies"`
	TestURL               string        `mapstructure:"test_url"`
	TestTimeout           time.Duration `mapstructure:"test_timeout"`
	MaxFailureCount       int           `mapstructure:"max_failure_count"`
	ValidationConcurrency int           `mapstructure:"validation_concurrency"`
}

// RotationConfig selects the proxy rotation strategy.
type RotationConfig struct {
	Strategy         string `mapstructure:"strategy"`
	SwitchAfter      int    `mapstructure:"switch_after"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
}

// MonitoringConfig controls pool snapshots and readiness.
type MonitoringConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	ReadyThreshold int  `mapstructure:"ready_threshold"`
}

// ProviderConfig describes one proxy source.
type ProviderConfig struct {
	Name     string        `mapstructure:"name"`
	Type     string        `mapstructure:"type"`
	URL      string        `mapstructure:"url"`
	Priority int           `mapstructure:"priority"`
	Disabled bool          `mapstructure:"disabled"`
	Protocol string        `mapstructure:"protocol"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Entries  []string      `mapstructure:"entries"`
	// html providers only
	RowSelector  string `mapstructure:"row_selector"`
	HostSelector string `mapstructure:"host_selector"`
	PortSelector string `mapstructure:"port_selector"`
}

// CrawlerConfig governs fetching, pacing and URL admission.
type CrawlerConfig struct {
	UserAgent             string        `mapstructure:"user_agent"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryDelay            time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay         time.Duration `mapstructure:"max_retry_delay"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	BatchDelay            time.Duration `mapstructure:"batch_delay"`
	UseProxy              bool          `mapstructure:"use_proxy"`
	MaxURLsPerRun         int           `mapstructure:"max_urls_per_run"`
	ConnectivityTimeout   time.Duration `mapstructure:"connectivity_timeout"`
	ConnectivityAttempts  int           `mapstructure:"connectivity_attempts"`
	URLTimeout            time.Duration `mapstructure:"url_timeout"`
	RateLimitPerDomain    float64       `mapstructure:"rate_limit_per_domain"`
	DisallowedPaths       []string      `mapstructure:"disallowed_paths"`
	DisallowedExtensions  []string      `mapstructure:"disallowed_extensions"`
	BlockedDomains        []string      `mapstructure:"blocked_domains"`
}

// CacheConfig sizes the crawl response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

// LimitsConfig bounds extracted text fields.
type LimitsConfig struct {
	MaxDescriptionLength int `mapstructure:"max_description_length"`
}

// ScheduleConfig holds cron specs for recurring jobs.
type ScheduleConfig struct {
	Crawl           string `mapstructure:"crawl"`
	FullCrawl       string `mapstructure:"full_crawl"`
	HealthCheck     string `mapstructure:"health_check"`
	Metrics         string `mapstructure:"metrics"`
	ProviderRefresh string `mapstructure:"provider_refresh"`
	CacheSweep      string `mapstructure:"cache_sweep"`
}

// PersistenceConfig selects the record sink.
type PersistenceConfig struct {
	Provider    string         `mapstructure:"provider"`
	MaxAttempts int            `mapstructure:"max_attempts"`
	RetryDelay  time.Duration  `mapstructure:"retry_delay"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PublisherConfig holds metadata for saved-record notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("pool.enabled", true)
	v.SetDefault("pool.max_proxies", 500)
	v.SetDefault("pool.min_working_proxies", 10)
	v.SetDefault("pool.test_url", "https://httpbin.org/ip")
	v.SetDefault("pool.test_timeout", "10s")
	v.SetDefault("pool.max_failure_count", 3)
	v.SetDefault("pool.validation_concurrency", 20)

	v.SetDefault("rotation.strategy", "best-response-time")
	v.SetDefault("rotation.switch_after", 10)
	v.SetDefault("rotation.failure_threshold", 3)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.ready_threshold", 40)

	v.SetDefault("crawler.user_agent", "proxy-crawler-bot/0.1")
	v.SetDefault("crawler.request_timeout", "30s")
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.retry_delay", "1s")
	v.SetDefault("crawler.max_retry_delay", "30s")
	v.SetDefault("crawler.max_concurrent_requests", 5)
	v.SetDefault("crawler.batch_delay", "2s")
	v.SetDefault("crawler.use_proxy", true)
	v.SetDefault("crawler.max_urls_per_run", 10)
	v.SetDefault("crawler.connectivity_timeout", "10s")
	v.SetDefault("crawler.connectivity_attempts", 3)
	v.SetDefault("crawler.url_timeout", "30s")
	v.SetDefault("crawler.rate_limit_per_domain", 2.0)
	v.SetDefault("crawler.disallowed_paths", []string{"/admin", "/login", "/logout", "/register", "/api/"})
	v.SetDefault("crawler.disallowed_extensions", []string{".pdf", ".zip", ".rar", ".exe", ".jpg", ".jpeg", ".png", ".gif", ".mp4", ".mp3"})

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_size", 1000)

	v.SetDefault("limits.max_description_length", 5000)

	v.SetDefault("schedule.crawl", "@every 6h")
	v.SetDefault("schedule.full_crawl", "0 3 * * *")
	v.SetDefault("schedule.health_check", "@every 5m")
	v.SetDefault("schedule.metrics", "@every 1m")
	v.SetDefault("schedule.provider_refresh", "@every 30m")
	v.SetDefault("schedule.cache_sweep", "@every 10m")

	v.SetDefault("persistence.provider", "memory")
	v.SetDefault("persistence.max_attempts", 3)
	v.SetDefault("persistence.retry_delay", "1s")
	v.SetDefault("persistence.postgres.table", "crawled_records")

	v.SetDefault("publisher.provider", "none")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pool.Enabled {
		if c.Pool.TestURL == "" {
			return fmt.Errorf("pool.test_url must be set when the pool is enabled")
		}
		if c.Pool.TestTimeout <= 0 {
			return fmt.Errorf("pool.test_timeout must be > 0")
		}
		if c.Pool.MaxProxies <= 0 {
			return fmt.Errorf("pool.max_proxies must be > 0")
		}
		if c.Pool.ValidationConcurrency <= 0 {
			return fmt.Errorf("pool.validation_concurrency must be > 0")
		}
	}
	if c.Crawler.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("crawler.max_concurrent_requests must be > 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxURLsPerRun <= 0 {
		return fmt.Errorf("crawler.max_urls_per_run must be > 0")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0 when the cache is enabled")
	}
	switch c.Persistence.Provider {
	case "memory":
	case "postgres":
		if c.Persistence.Postgres.DSN == "" {
			return fmt.Errorf("persistence.postgres.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown persistence.provider %q", c.Persistence.Provider)
	}
	switch c.Publisher.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set for pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher.provider %q", c.Publisher.Provider)
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name must be set", i)
		}
		switch p.Type {
		case "text", "html":
			if p.URL == "" {
				return fmt.Errorf("providers[%d].url must be set for %s providers", i, p.Type)
			}
		case "static":
		default:
			return fmt.Errorf("providers[%d]: unknown type %q", i, p.Type)
		}
	}
	seen := make(map[string]struct{}, len(c.Targets))
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("targets[%d].name must be set", i)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		u, err := url.Parse(t.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("targets[%d].base_url %q is not an absolute http(s) URL", i, t.BaseURL)
		}
	}
	return nil
}

// RetryPolicy derives the crawler retry policy from the crawler section.
func (c Config) RetryPolicy() crawler.RetryPolicy {
	return crawler.RetryPolicy{
		MaxAttempts: c.Crawler.MaxRetries,
		BaseDelay:   c.Crawler.RetryDelay,
		MaxDelay:    c.Crawler.MaxRetryDelay,
	}
}

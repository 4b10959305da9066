package types

// EndpointConfig names one upstream resource. URL may be absolute or relative
// to APIConfig.BaseURL. Name selects the normalizer.
type EndpointConfig struct {
	Name           string            `yaml:"name" json:"name"`
	URL            string            `yaml:"url" json:"url"`
	Query          map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	TimeoutSeconds float64           `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// APIConfig holds settings shared by every endpoint.
type APIConfig struct {
	BaseURL        string  `yaml:"base_url" json:"base_url"`
	Language       string  `yaml:"language,omitempty" json:"language,omitempty"`
	TimeoutSeconds float64 `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// RetryPolicy configures fetch retries. Attempt n (n >= 2) waits
// BaseDelaySeconds * 2^(n-2) before it is issued.
type RetryPolicy struct {
	MaxAttempts      int     `yaml:"max_attempts" json:"max_attempts"`
	BaseDelaySeconds float64 `yaml:"base_delay_seconds" json:"base_delay_seconds"`
	MaxDelaySeconds  float64 `yaml:"max_delay_seconds,omitempty" json:"max_delay_seconds,omitempty"`
}

// BreakerConfig stops the scheduler from invoking runs after repeated failures.
type BreakerConfig struct {
	FailThreshold int    `yaml:"fail_threshold" json:"fail_threshold"`
	Cooldown      string `yaml:"cooldown" json:"cooldown"` // e.g. "1h"
}

// ArchiveConfig configures mirroring of run history to Postgres.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	DSN      string `yaml:"dsn" json:"dsn"`
	Interval string `yaml:"interval,omitempty" json:"interval,omitempty"` // e.g. "15m"
}

// TelemetryConfig configures OTLP export of traces and metrics. An empty
// endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
	ServiceName  string `yaml:"service_name,omitempty" json:"service_name,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// ProjectConfig is the top-level pipeline configuration.
type ProjectConfig struct {
	API                   APIConfig        `yaml:"api" json:"api"`
	Endpoints             []EndpointConfig `yaml:"endpoints" json:"endpoints"`
	Retry                 RetryPolicy      `yaml:"retry" json:"retry"`
	RateLimitDelaySeconds *float64         `yaml:"rate_limit_delay_seconds,omitempty" json:"rate_limit_delay_seconds,omitempty"`
	StorePath             string           `yaml:"store_path" json:"store_path"`
	LogLevel              string           `yaml:"log_level" json:"log_level"`
	LogFormat             string           `yaml:"log_format,omitempty" json:"log_format,omitempty"`
	LogFile               string           `yaml:"log_file,omitempty" json:"log_file,omitempty"`
	ScheduleIntervalHours *float64         `yaml:"schedule_interval_hours,omitempty" json:"schedule_interval_hours,omitempty"`
	RunOnStart            *bool            `yaml:"run_on_start,omitempty" json:"run_on_start,omitempty"`
	Breaker               *BreakerConfig   `yaml:"breaker,omitempty" json:"breaker,omitempty"`
	Archive               *ArchiveConfig   `yaml:"archive,omitempty" json:"archive,omitempty"`
	Telemetry             *TelemetryConfig `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// RateLimitDelay returns the pause after each fetch in seconds. Unset means no pause.
func (c *ProjectConfig) RateLimitDelay() float64 {
	if c.RateLimitDelaySeconds == nil {
		return 0
	}
	return *c.RateLimitDelaySeconds
}

// IntervalHours returns the scheduling interval. Unset means zero.
func (c *ProjectConfig) IntervalHours() float64 {
	if c.ScheduleIntervalHours == nil {
		return 0
	}
	return *c.ScheduleIntervalHours
}

// Package config handles loading and validation of the pipeline configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/gamedata-etl/internal/logging"
	"github.com/dwsmith1983/gamedata-etl/internal/normalize"
	"github.com/dwsmith1983/gamedata-etl/internal/schedule"
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// DefaultPath is where commands look for the configuration when --config is not given.
const DefaultPath = "config/pipeline.yaml"

// Environment variables that override file settings.
const (
	EnvStorePath  = "ETL_STORE_PATH"
	EnvLogLevel   = "ETL_LOG_LEVEL"
	EnvAPIBaseURL = "ETL_API_BASE_URL"
	EnvArchiveDSN = "ETL_ARCHIVE_DSN"
	EnvOTLP       = "ETL_OTLP_ENDPOINT"
)

// Default returns the configuration written by `gamedata-etl init`.
func Default() *types.ProjectConfig {
	runOnStart := true
	rateLimit, interval := 0.5, 6.0
	return &types.ProjectConfig{
		API: types.APIConfig{
			BaseURL:        "https://valorant-api.com/v1",
			Language:       "en-US",
			TimeoutSeconds: 30,
		},
		Endpoints: []types.EndpointConfig{
			{Name: "agents", URL: "agents"},
			{Name: "weapons", URL: "weapons"},
			{Name: "maps", URL: "maps"},
			{Name: "gamemodes", URL: "gamemodes"},
		},
		Retry: types.RetryPolicy{
			MaxAttempts:      3,
			BaseDelaySeconds: 1,
		},
		RateLimitDelaySeconds: &rateLimit,
		StorePath:             "data/valorant_etl.db",
		LogLevel:              "info",
		LogFormat:             "text",
		ScheduleIntervalHours: &interval,
		RunOnStart:            &runOnStart,
		Breaker: &types.BreakerConfig{
			FailThreshold: 3,
			Cooldown:      "1h",
		},
	}
}

// Load reads and parses the configuration file at path. A .env file in the
// working directory, when present, is loaded first so its variables can
// override file settings.
func Load(path string) (*types.ProjectConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Write marshals cfg as YAML to path, creating parent directories.
func Write(path string, cfg *types.ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *types.ProjectConfig) {
	def := Default()
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelaySeconds == 0 {
		cfg.Retry.BaseDelaySeconds = def.Retry.BaseDelaySeconds
	}
	if cfg.StorePath == "" {
		cfg.StorePath = def.StorePath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}
	if cfg.RunOnStart == nil {
		cfg.RunOnStart = def.RunOnStart
	}
	if cfg.RateLimitDelaySeconds == nil {
		cfg.RateLimitDelaySeconds = def.RateLimitDelaySeconds
	}
	if cfg.ScheduleIntervalHours == nil {
		cfg.ScheduleIntervalHours = def.ScheduleIntervalHours
	}
}

func applyEnv(cfg *types.ProjectConfig) {
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvArchiveDSN); v != "" {
		if cfg.Archive == nil {
			cfg.Archive = &types.ArchiveConfig{Enabled: true}
		}
		cfg.Archive.DSN = v
	}
	if v := os.Getenv(EnvOTLP); v != "" {
		if cfg.Telemetry == nil {
			cfg.Telemetry = &types.TelemetryConfig{}
		}
		cfg.Telemetry.OTLPEndpoint = v
	}
}

func validate(cfg *types.ProjectConfig) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}
	seen := make(map[string]bool, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoints[%d].name is required", i)
		}
		if _, ok := normalize.Lookup(ep.Name); !ok {
			return fmt.Errorf("endpoints[%d]: unknown endpoint %q (known: %s)", i, ep.Name, strings.Join(normalize.Names(), ", "))
		}
		if seen[ep.Name] {
			return fmt.Errorf("endpoints[%d]: duplicate endpoint %q", i, ep.Name)
		}
		seen[ep.Name] = true
		if ep.URL == "" {
			return fmt.Errorf("endpoints[%d].url is required", i)
		}
		isAbs := strings.HasPrefix(ep.URL, "http://") || strings.HasPrefix(ep.URL, "https://")
		if !isAbs && cfg.API.BaseURL == "" {
			return fmt.Errorf("endpoint %q has a relative url and api.base_url is empty", ep.Name)
		}
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if cfg.Retry.BaseDelaySeconds < 0 {
		return fmt.Errorf("retry.base_delay_seconds must not be negative")
	}
	if cfg.RateLimitDelay() < 0 {
		return fmt.Errorf("rate_limit_delay_seconds must not be negative")
	}
	if cfg.IntervalHours() < 0 {
		return fmt.Errorf("schedule_interval_hours must not be negative")
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.Breaker != nil {
		if cfg.Breaker.FailThreshold < 0 {
			return fmt.Errorf("breaker.fail_threshold must not be negative")
		}
		if _, err := schedule.ParseDuration(cfg.Breaker.Cooldown, 0); err != nil {
			return fmt.Errorf("breaker.cooldown: %w", err)
		}
	}
	if cfg.Archive != nil && cfg.Archive.Enabled {
		if cfg.Archive.DSN == "" {
			return fmt.Errorf("archive.dsn is required when archive is enabled")
		}
		if _, err := schedule.ParseDuration(cfg.Archive.Interval, 0); err != nil {
			return fmt.Errorf("archive.interval: %w", err)
		}
	}
	return nil
}

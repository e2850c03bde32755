package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "warden.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "WARDEN_PORT")

	setBool(&cfg.Postgres.Enabled, "WARDEN_PG_ENABLED")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "WARDEN_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "WARDEN_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "WARDEN_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "WARDEN_PG_MAX_CONN_IDLE_TIME")

	setBool(&cfg.NATS.Enabled, "WARDEN_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Logging.Level, "WARDEN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "WARDEN_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "WARDEN_LOG_ASYNC")

	setBool(&cfg.Telemetry.Enabled, "WARDEN_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "WARDEN_OTEL_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "WARDEN_OTEL_INSECURE")
	setFloat64(&cfg.Telemetry.SampleRate, "WARDEN_OTEL_SAMPLE_RATE")

	setInt64(&cfg.Cache.MaxEntries, "WARDEN_CACHE_MAX_ENTRIES")

	setInt(&cfg.Drift.HistoryCap, "WARDEN_DRIFT_HISTORY_CAP")
	setInt(&cfg.Drift.AlertCap, "WARDEN_DRIFT_ALERT_CAP")
	setInt(&cfg.Drift.MinSamples, "WARDEN_DRIFT_MIN_SAMPLES")
	setFloat64(&cfg.Drift.AlertThreshold, "WARDEN_DRIFT_ALERT_THRESHOLD")
	setFloat64(&cfg.Drift.HighThreshold, "WARDEN_DRIFT_HIGH_THRESHOLD")
	setFloat64(&cfg.Drift.CriticalThreshold, "WARDEN_DRIFT_CRITICAL_THRESHOLD")

	setDuration(&cfg.Hold.SweepInterval, "WARDEN_HOLD_SWEEP_INTERVAL")

	setBool(&cfg.MCP.Enabled, "WARDEN_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "WARDEN_MCP_ADDR")

	setString(&cfg.Admin.TokenHash, "WARDEN_ADMIN_TOKEN_HASH")

	setInt64(&cfg.Control.HoldTimeoutMS, "WARDEN_HOLD_TIMEOUT_MS")
	setFloat64(&cfg.Control.DriftPredictionThreshold, "WARDEN_DRIFT_PREDICTION_THRESHOLD")
	setFloat64(&cfg.Control.BaselineDeviationThreshold, "WARDEN_BASELINE_DEVIATION_THRESHOLD")
	setFloat64(&cfg.Control.ConfidenceThreshold, "WARDEN_CONFIDENCE_THRESHOLD")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.Enabled {
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required when postgres is enabled")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.MCP.Enabled && cfg.MCP.Addr == "" {
		return errors.New("mcp.addr is required when mcp is enabled")
	}
	if cfg.Hold.SweepInterval < time.Second {
		return errors.New("hold.sweep_interval must be at least 1s")
	}
	if err := cfg.Control.Validate(); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

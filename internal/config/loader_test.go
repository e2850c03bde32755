package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Drift.HistoryCap != 1000 {
		t.Errorf("expected history_cap 1000, got %d", cfg.Drift.HistoryCap)
	}
	if cfg.Hold.SweepInterval != 30*time.Second {
		t.Errorf("expected sweep interval 30s, got %v", cfg.Hold.SweepInterval)
	}
	if !cfg.Control.EnableCircuitBreakerCheck {
		t.Error("expected circuit breaker check enabled by default")
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
logging:
  level: "debug"
drift:
  min_samples: 20
control:
  drift_prediction_threshold: 0.8
  mcp_validation_tools:
    - "delete_*"
    - "deploy/**"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Drift.MinSamples != 20 {
		t.Errorf("expected min_samples 20, got %d", cfg.Drift.MinSamples)
	}
	if cfg.Control.DriftPredictionThreshold != 0.8 {
		t.Errorf("expected prediction threshold 0.8, got %v", cfg.Control.DriftPredictionThreshold)
	}
	if len(cfg.Control.MCPValidationTools) != 2 {
		t.Errorf("expected 2 validation patterns, got %d", len(cfg.Control.MCPValidationTools))
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("WARDEN_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("WARDEN_LOG_LEVEL", "warn")
	t.Setenv("WARDEN_DRIFT_MIN_SAMPLES", "25")
	t.Setenv("WARDEN_HOLD_TIMEOUT_MS", "60000")
	t.Setenv("WARDEN_HOLD_SWEEP_INTERVAL", "10s")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("unexpected dsn %s", cfg.Postgres.DSN)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Drift.MinSamples != 25 {
		t.Errorf("expected min_samples 25, got %d", cfg.Drift.MinSamples)
	}
	if cfg.Control.HoldTimeoutMS != 60000 {
		t.Errorf("expected hold timeout 60000, got %d", cfg.Control.HoldTimeoutMS)
	}
	if cfg.Hold.SweepInterval != 10*time.Second {
		t.Errorf("expected sweep interval 10s, got %v", cfg.Hold.SweepInterval)
	}
}

func TestEnvIgnoresInvalidValues(t *testing.T) {
	cfg := Defaults()

	t.Setenv("WARDEN_DRIFT_MIN_SAMPLES", "not-a-number")
	t.Setenv("WARDEN_HOLD_SWEEP_INTERVAL", "soon")

	loadEnv(&cfg)

	if cfg.Drift.MinSamples != Defaults().Drift.MinSamples {
		t.Errorf("invalid int should keep default, got %d", cfg.Drift.MinSamples)
	}
	if cfg.Hold.SweepInterval != Defaults().Hold.SweepInterval {
		t.Errorf("invalid duration should keep default, got %v", cfg.Hold.SweepInterval)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := Defaults()
	bad.Server.Port = ""
	if err := validate(&bad); err == nil {
		t.Error("expected error for empty port")
	}

	bad = Defaults()
	bad.Postgres.Enabled = true
	bad.Postgres.DSN = ""
	if err := validate(&bad); err == nil {
		t.Error("expected error for enabled postgres without dsn")
	}

	bad = Defaults()
	bad.Control.DriftPredictionThreshold = 2
	if err := validate(&bad); err == nil {
		t.Error("expected error for out-of-range control threshold")
	}

	bad = Defaults()
	bad.Hold.SweepInterval = 0
	if err := validate(&bad); err == nil {
		t.Error("expected error for zero sweep interval")
	}
}

func TestLoadFromFullHierarchy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "warden.yaml")

	content := `
server:
  port: "9090"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Env wins over YAML.
	t.Setenv("WARDEN_PORT", "7070")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected env to win, got %s", cfg.Server.Port)
	}
}

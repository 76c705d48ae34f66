package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("Expected memory storage, got %s", cfg.Storage.Driver)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("Expected no database URL for memory storage, got %q", cfg.DatabaseURL)
	}
	if !cfg.Queue.AutoAnalyze || cfg.Queue.Workers != 2 {
		t.Errorf("Expected auto analysis with 2 workers, got %+v", cfg.Queue)
	}
	if cfg.Retry.InitialWait != time.Second {
		t.Errorf("Expected 1s initial retry wait, got %s", cfg.Retry.InitialWait)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected 30s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}

	ac := cfg.AnalyzerConfig()
	if ac.BucketInterval != time.Hour {
		t.Errorf("Expected 1h buckets, got %s", ac.BucketInterval)
	}
	if ac.MaxBuckets != 5000 {
		t.Errorf("Expected 5000 buckets, got %d", ac.MaxBuckets)
	}
	if len(ac.Patterns.Levels) != 3 {
		t.Errorf("Expected 3 pattern levels, got %v", ac.Patterns.Levels)
	}
	if ac.Anomalies.MinSilenceBuckets != 3 {
		t.Errorf("Expected 3 silence buckets, got %d", ac.Anomalies.MinSilenceBuckets)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
log_format: json
storage:
  driver: postgres
db:
  host: db.internal
  user: analyzer
  password: secret
  name: logs
analysis:
  bucket_interval: 15m
  pattern_levels: [ERROR, warn]
  anomalies:
    stddev_multiplier: 3
limits:
  max_lines: 500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9000" || cfg.LogFormat != "json" {
		t.Errorf("Expected file values, got port %s format %s", cfg.Port, cfg.LogFormat)
	}
	if !strings.Contains(cfg.DatabaseURL, "host=db.internal") || !strings.Contains(cfg.DatabaseURL, "dbname=logs") {
		t.Errorf("Expected DSN built from db settings, got %q", cfg.DatabaseURL)
	}
	if cfg.Limits.MaxLines != 500 {
		t.Errorf("Expected 500 max lines, got %d", cfg.Limits.MaxLines)
	}

	ac := cfg.AnalyzerConfig()
	if ac.BucketInterval != 15*time.Minute {
		t.Errorf("Expected 15m buckets, got %s", ac.BucketInterval)
	}
	if ac.Anomalies.StdDevMultiplier != 3 {
		t.Errorf("Expected multiplier 3, got %v", ac.Anomalies.StdDevMultiplier)
	}
	want := []models.LogLevel{models.LogLevelError, models.LogLevelWarn}
	if len(ac.Patterns.Levels) != len(want) {
		t.Fatalf("Expected levels %v, got %v", want, ac.Patterns.Levels)
	}
	for i := range want {
		if ac.Patterns.Levels[i] != want[i] {
			t.Errorf("Expected levels %v, got %v", want, ac.Patterns.Levels)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("MONGO_DATABASE", "analyzer_test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Expected port from env, got %s", cfg.Port)
	}
	if cfg.Storage.Driver != DriverMongo {
		t.Errorf("Expected mongo driver from env, got %s", cfg.Storage.Driver)
	}
	if cfg.Mongo.Database != "analyzer_test" {
		t.Errorf("Expected mongo database from env, got %s", cfg.Mongo.Database)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "storage:\n  driver: redis\n"},
		{"bad interval", "analysis:\n  bucket_interval: fortnight\n"},
		{"bad gin mode", "gin_mode: verbose\n"},
		{"negative workers", "queue:\n  workers: -1\n"},
		{"ratio above one", "analysis:\n  high_frequency_ratio: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for a missing config file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forkrun.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `spawn:
  retryDelay: 10ms
  maxRetries: 3
run:
  timeout: 30s
  drainTimeout: 500ms
logging:
  level: debug
  format: json
  output: stdout
  noColor: true
metrics:
  address: 127.0.0.1:9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Spawn.RetryDelay.Duration != 10*time.Millisecond {
		t.Fatalf("unexpected retry delay %s", cfg.Spawn.RetryDelay.Duration)
	}
	if cfg.Spawn.MaxRetries == nil || *cfg.Spawn.MaxRetries != 3 {
		t.Fatalf("unexpected max retries %v", cfg.Spawn.MaxRetries)
	}
	if cfg.Run.Timeout.Duration != 30*time.Second || cfg.Run.DrainTimeout.Duration != 500*time.Millisecond {
		t.Fatalf("unexpected run config %+v", cfg.Run)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stdout" || !cfg.Logging.NoColor {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Metrics.Address != "127.0.0.1:9090" {
		t.Fatalf("unexpected metrics address %q", cfg.Metrics.Address)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Spawn.RetryDelay.Duration != DefaultRetryDelay {
		t.Fatalf("unexpected retry delay %s", cfg.Spawn.RetryDelay.Duration)
	}
	if *cfg.Spawn.MaxRetries != DefaultMaxRetries {
		t.Fatalf("unexpected max retries %d", *cfg.Spawn.MaxRetries)
	}
	if cfg.Run.Timeout.Duration != 0 {
		t.Fatalf("expected no timeout by default, got %s", cfg.Run.Timeout.Duration)
	}
	if cfg.Run.DrainTimeout.Duration != DefaultDrainTimeout {
		t.Fatalf("unexpected drain timeout %s", cfg.Run.DrainTimeout.Duration)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err != nil {
		t.Fatalf("load empty file: %v", err)
	}
}

func TestLoadExplicitZeroRetries(t *testing.T) {
	cfg, err := Load(writeConfig(t, "spawn:\n  maxRetries: 0\n  retryDelay: \"\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg.Spawn.MaxRetries != 0 {
		t.Fatalf("expected explicit zero retries to be kept, got %d", *cfg.Spawn.MaxRetries)
	}
	if cfg.Spawn.RetryDelay.Duration != 0 {
		t.Fatalf("expected explicit empty delay to be kept, got %s", cfg.Spawn.RetryDelay.Duration)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "spawn:\n  retries: 3\n"))
	if err == nil || !strings.Contains(err.Error(), "retries") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "run:\n  timeout: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "negative retries", body: "spawn:\n  maxRetries: -1\n", want: "spawn.maxRetries"},
		{name: "negative timeout", body: "run:\n  timeout: -1s\n", want: "run.timeout"},
		{name: "bad level", body: "logging:\n  level: loud\n", want: "logging.level"},
		{name: "bad metrics address", body: "metrics:\n  address: nowhere\n", want: "metrics.address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "run:\n  timeout: 30s\nlogging:\n  level: info\n")
	t.Setenv(EnvTimeout, "5s")
	t.Setenv(EnvMaxRetries, "2")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvMetricsAddr, ":9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Run.Timeout.Duration != 5*time.Second {
		t.Fatalf("expected env timeout, got %s", cfg.Run.Timeout.Duration)
	}
	if *cfg.Spawn.MaxRetries != 2 {
		t.Fatalf("expected env retries, got %d", *cfg.Spawn.MaxRetries)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.NoColor {
		t.Fatalf("expected env logging overrides, got %+v", cfg.Logging)
	}
	if cfg.Metrics.Address != ":9100" {
		t.Fatalf("expected env metrics address, got %q", cfg.Metrics.Address)
	}
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	t.Setenv(EnvDrainTimeout, "later")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), EnvDrainTimeout) {
		t.Fatalf("expected env override error, got %v", err)
	}
}

func TestRuntimeSettings(t *testing.T) {
	cfg := Default()
	settings := cfg.RuntimeSettings(zeroLogger())
	if settings.SpawnDelay == nil || *settings.SpawnDelay != DefaultRetryDelay {
		t.Fatalf("unexpected spawn delay %v", settings.SpawnDelay)
	}
	if settings.MaxSpawnRetries == nil || *settings.MaxSpawnRetries != DefaultMaxRetries {
		t.Fatalf("unexpected max retries %v", settings.MaxSpawnRetries)
	}
	if settings.DrainTimeout != DefaultDrainTimeout {
		t.Fatalf("unexpected drain timeout %s", settings.DrainTimeout)
	}
}

func TestRuntimeSettingsKeepsExplicitZero(t *testing.T) {
	cfg, err := Load(writeConfig(t, "spawn:\n  retryDelay: 0s\n  maxRetries: 0\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	settings := cfg.RuntimeSettings(zeroLogger())
	if settings.SpawnDelay == nil || *settings.SpawnDelay != 0 {
		t.Fatalf("expected explicit zero delay, got %v", settings.SpawnDelay)
	}
	if settings.MaxSpawnRetries == nil || *settings.MaxSpawnRetries != 0 {
		t.Fatalf("expected explicit zero retries, got %v", settings.MaxSpawnRetries)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.env")
	body := "# comment\nTOKEN=alpha\nQUOTED=\"two words\"\nexport EXPORTED=yes\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	values, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	want := map[string]string{"TOKEN": "alpha", "QUOTED": "two words", "EXPORTED": "yes"}
	for k, v := range want {
		if values[k] != v {
			t.Fatalf("unexpected %s: got %q want %q", k, values[k], v)
		}
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if _, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

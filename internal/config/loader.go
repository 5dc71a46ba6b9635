package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values.
const (
	EnvRetryDelay   = "FORKRUN_SPAWN_RETRY_DELAY"
	EnvMaxRetries   = "FORKRUN_SPAWN_MAX_RETRIES"
	EnvTimeout      = "FORKRUN_RUN_TIMEOUT"
	EnvDrainTimeout = "FORKRUN_RUN_DRAIN_TIMEOUT"
	EnvLogLevel     = "FORKRUN_LOG_LEVEL"
	EnvLogFormat    = "FORKRUN_LOG_FORMAT"
	EnvLogOutput    = "FORKRUN_LOG_OUTPUT"
	EnvLogNoColor   = "FORKRUN_LOG_NO_COLOR"
	EnvMetricsAddr  = "FORKRUN_METRICS_ADDR"
)

// Load reads the configuration file at path, applies FORKRUN_* environment
// overrides and defaults, and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	var doc Config
	source := "environment"

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		f, err := os.Open(absPath)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: decode: %w", absPath, err)
		}
		source = absPath
	}

	if err := applyEnvOverrides(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &doc, nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := envDuration(EnvRetryDelay, &cfg.Spawn.RetryDelay); err != nil {
		return err
	}
	if value := os.Getenv(EnvMaxRetries); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvMaxRetries, value)
		}
		cfg.Spawn.MaxRetries = &n
	}
	if err := envDuration(EnvTimeout, &cfg.Run.Timeout); err != nil {
		return err
	}
	if err := envDuration(EnvDrainTimeout, &cfg.Run.DrainTimeout); err != nil {
		return err
	}
	if value := os.Getenv(EnvLogLevel); value != "" {
		cfg.Logging.Level = value
	}
	if value := os.Getenv(EnvLogFormat); value != "" {
		cfg.Logging.Format = value
	}
	if value := os.Getenv(EnvLogOutput); value != "" {
		cfg.Logging.Output = value
	}
	if value := os.Getenv(EnvLogNoColor); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", EnvLogNoColor, value)
		}
		cfg.Logging.NoColor = enabled
	}
	if value := os.Getenv(EnvMetricsAddr); value != "" {
		cfg.Metrics.Address = value
	}
	return nil
}

func envDuration(key string, dst *Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, value)
	}
	dst.Duration = d
	dst.explicit = true
	return nil
}

// LoadEnvFile parses a dotenv file into variables for a command's
// environment.
func LoadEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	return values, nil
}

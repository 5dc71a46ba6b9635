package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Paintersrp/forkrun/internal/logging"
	"github.com/Paintersrp/forkrun/internal/runtime"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Config mirrors the forkrun.yaml document structure.
type Config struct {
	Spawn   SpawnConfig    `yaml:"spawn"`
	Run     RunConfig      `yaml:"run"`
	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// SpawnConfig controls retries of spawns that hit a busy executable.
type SpawnConfig struct {
	RetryDelay Duration `yaml:"retryDelay"`
	MaxRetries *int     `yaml:"maxRetries"`
}

// RunConfig bounds individual runs.
type RunConfig struct {
	// Timeout of zero disables the deadline.
	Timeout      Duration `yaml:"timeout"`
	DrainTimeout Duration `yaml:"drainTimeout"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Defaults applied to unset fields.
const (
	DefaultRetryDelay   = 50 * time.Millisecond
	DefaultMaxRetries   = 10
	DefaultDrainTimeout = 2 * time.Second
)

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if !c.Spawn.RetryDelay.IsSet() {
		c.Spawn.RetryDelay.Duration = DefaultRetryDelay
	}
	if c.Spawn.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.Spawn.MaxRetries = &retries
	}
	if c.Run.DrainTimeout.Duration == 0 {
		c.Run.DrainTimeout.Duration = DefaultDrainTimeout
	}
	c.Logging.ApplyDefaults()
}

// RuntimeSettings translates the configuration into executor settings.
func (c *Config) RuntimeSettings(logger zerolog.Logger) runtime.Settings {
	settings := runtime.Settings{
		Logger:       logger,
		DrainTimeout: c.Run.DrainTimeout.Duration,
	}
	if c.Spawn.RetryDelay.IsSet() {
		delay := c.Spawn.RetryDelay.Duration
		settings.SpawnDelay = &delay
	}
	if c.Spawn.MaxRetries != nil {
		retries := *c.Spawn.MaxRetries
		settings.MaxSpawnRetries = &retries
	}
	return settings
}

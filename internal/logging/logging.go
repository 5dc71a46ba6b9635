// Package logging builds the zerolog loggers used by the engine and the CLI.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Supported formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config contains logging configuration.
type Config struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Output  string `yaml:"output"`
	NoColor bool   `yaml:"noColor"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil || c.Level == "" {
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, fatal, disabled (got: %s)", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("logging.format must be one of %s, %s (got: %s)", FormatConsole, FormatJSON, c.Format)
	}
	switch strings.ToLower(c.Output) {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("logging.output must be stdout or stderr (got: %s)", c.Output)
	}
	return nil
}

// NewWithWriter creates a logger writing to w regardless of cfg.Output.
func NewWithWriter(cfg Config, w io.Writer) (zerolog.Logger, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return zerolog.Nop(), err
	}
	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))

	if strings.ToLower(cfg.Format) == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05",
			NoColor:    cfg.NoColor,
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

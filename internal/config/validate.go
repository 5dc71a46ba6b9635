package config

import (
	"fmt"
	"net"
)

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Spawn.RetryDelay.Duration < 0 {
		return fmt.Errorf("spawn.retryDelay must not be negative (got: %s)", c.Spawn.RetryDelay.Duration)
	}
	if c.Spawn.MaxRetries != nil && *c.Spawn.MaxRetries < 0 {
		return fmt.Errorf("spawn.maxRetries must not be negative (got: %d)", *c.Spawn.MaxRetries)
	}
	if c.Run.Timeout.Duration < 0 {
		return fmt.Errorf("run.timeout must not be negative (got: %s)", c.Run.Timeout.Duration)
	}
	if c.Run.DrainTimeout.Duration < 0 {
		return fmt.Errorf("run.drainTimeout must not be negative (got: %s)", c.Run.DrainTimeout.Duration)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if addr := c.Metrics.Address; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("metrics.address %q: %w", addr, err)
		}
	}
	return nil
}

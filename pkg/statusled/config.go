package statusled

import (
	"fmt"
	"time"

	"github.com/bft-labs/statusled/internal/domain"
)

// Config holds the engine settings of an Indicator.
type Config struct {
	// TickInterval is the render period. Default: 20ms.
	TickInterval time.Duration

	// Capacity is the maximum number of concurrent requests. Default: 32.
	Capacity int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		TickInterval: 20 * time.Millisecond,
		Capacity:     32,
	}
}

// SetDefaults fills zero fields with defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.TickInterval == 0 {
		c.TickInterval = d.TickInterval
	}
	if c.Capacity == 0 {
		c.Capacity = d.Capacity
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", domain.ErrInvalidConfig)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

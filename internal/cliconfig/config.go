package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/statusled/internal/domain"
)

// Output drivers.
const (
	OutputPWM     = "pwm"
	OutputConsole = "console"
	OutputNone    = "none"
)

// Config holds CLI configuration for statusled.
type Config struct {
	LogLevel string

	TickInterval time.Duration
	Capacity     int

	Output       string
	PinRed       string
	PinGreen     string
	PinBlue      string
	PWMFrequency int
	ActiveLow    bool

	// SerialPort enables the diagnostic transport when set.
	SerialPort     string
	BaudRate       int
	DataBits       int
	StopBits       int
	Parity         string
	ReadTimeout    time.Duration
	LogForward     bool
	FlowControlRTS bool
	FlowControlCTS bool

	BusQueue int
	Watch    bool
	Demo     bool

	// Profiles come from the config file only.
	Profiles []ProfileConfig
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:     "info",
		TickInterval: 20 * time.Millisecond,
		Capacity:     32,
		Output:       OutputConsole,
		PWMFrequency: 1000,
		BaudRate:     115200,
		DataBits:     8,
		StopBits:     1,
		Parity:       "N",
		ReadTimeout:  50 * time.Millisecond,
		BusQueue:     64,
		Watch:        true,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, c.LogLevel)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", domain.ErrInvalidConfig)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", domain.ErrInvalidConfig)
	}

	c.Output = strings.ToLower(c.Output)
	switch c.Output {
	case OutputPWM:
		if c.PinRed == "" || c.PinGreen == "" || c.PinBlue == "" {
			return fmt.Errorf("%w: pwm output needs pin-red, pin-green and pin-blue", domain.ErrInvalidConfig)
		}
		if c.PWMFrequency <= 0 {
			return fmt.Errorf("%w: pwm frequency must be positive", domain.ErrInvalidConfig)
		}
	case OutputConsole, OutputNone:
	default:
		return fmt.Errorf("%w: unknown output %q", domain.ErrInvalidConfig, c.Output)
	}

	if c.SerialPort != "" {
		c.Parity = strings.ToUpper(c.Parity)
		if c.Parity != "N" && c.Parity != "E" && c.Parity != "O" {
			return fmt.Errorf("%w: parity %q, want N, E or O", domain.ErrInvalidConfig, c.Parity)
		}
		if c.DataBits < 5 || c.DataBits > 8 {
			return fmt.Errorf("%w: data bits %d", domain.ErrInvalidConfig, c.DataBits)
		}
		if c.StopBits != 1 && c.StopBits != 2 {
			return fmt.Errorf("%w: stop bits %d", domain.ErrInvalidConfig, c.StopBits)
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("%w: baud rate must be positive", domain.ErrInvalidConfig)
		}
	}

	if _, err := BuildProfiles(c.Profiles); err != nil {
		return err
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

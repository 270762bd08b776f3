package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	LogLevel     string `toml:"log_level" yaml:"log_level"`
	TickInterval string `toml:"tick_interval" yaml:"tick_interval"`
	Capacity     int    `toml:"capacity" yaml:"capacity"`

	Output       string `toml:"output" yaml:"output"`
	PinRed       string `toml:"pin_red" yaml:"pin_red"`
	PinGreen     string `toml:"pin_green" yaml:"pin_green"`
	PinBlue      string `toml:"pin_blue" yaml:"pin_blue"`
	PWMFrequency int    `toml:"pwm_frequency" yaml:"pwm_frequency"`
	ActiveLow    *bool  `toml:"active_low" yaml:"active_low"`

	SerialPort     string `toml:"serial_port" yaml:"serial_port"`
	BaudRate       int    `toml:"baud_rate" yaml:"baud_rate"`
	DataBits       int    `toml:"data_bits" yaml:"data_bits"`
	StopBits       int    `toml:"stop_bits" yaml:"stop_bits"`
	Parity         string `toml:"parity" yaml:"parity"`
	ReadTimeout    string `toml:"read_timeout" yaml:"read_timeout"`
	LogForward     *bool  `toml:"log_forward" yaml:"log_forward"`
	FlowControlRTS *bool  `toml:"flow_control_rts" yaml:"flow_control_rts"`
	FlowControlCTS *bool  `toml:"flow_control_cts" yaml:"flow_control_cts"`

	BusQueue int   `toml:"bus_queue" yaml:"bus_queue"`
	Watch    *bool `toml:"watch" yaml:"watch"`
	Demo     *bool `toml:"demo" yaml:"demo"`

	Profiles []ProfileConfig `toml:"profile" yaml:"profiles"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.statusled/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".statusled", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
// Profiles in the file replace the current ones.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("output", fc.Output, &cfg.Output)
	s.setString("pin-red", fc.PinRed, &cfg.PinRed)
	s.setString("pin-green", fc.PinGreen, &cfg.PinGreen)
	s.setString("pin-blue", fc.PinBlue, &cfg.PinBlue)
	s.setString("serial-port", fc.SerialPort, &cfg.SerialPort)
	s.setString("parity", fc.Parity, &cfg.Parity)

	if err := s.setDuration("tick", fc.TickInterval, &cfg.TickInterval); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}

	s.setInt("capacity", fc.Capacity, &cfg.Capacity)
	s.setInt("pwm-frequency", fc.PWMFrequency, &cfg.PWMFrequency)
	s.setInt("baud", fc.BaudRate, &cfg.BaudRate)
	s.setInt("data-bits", fc.DataBits, &cfg.DataBits)
	s.setInt("stop-bits", fc.StopBits, &cfg.StopBits)
	s.setInt("bus-queue", fc.BusQueue, &cfg.BusQueue)

	s.setBool("active-low", fc.ActiveLow, &cfg.ActiveLow)
	s.setBool("log-forward", fc.LogForward, &cfg.LogForward)
	s.setBool("rts", fc.FlowControlRTS, &cfg.FlowControlRTS)
	s.setBool("cts", fc.FlowControlCTS, &cfg.FlowControlCTS)
	s.setBool("watch", fc.Watch, &cfg.Watch)
	s.setBool("demo", fc.Demo, &cfg.Demo)

	if len(fc.Profiles) > 0 {
		cfg.Profiles = fc.Profiles
	}
	return nil
}

// Load applies the file at path (if it exists) and then the environment.
func Load(cfg *Config, path string, changed map[string]bool) error {
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	return ApplyEnvConfig(cfg, changed)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

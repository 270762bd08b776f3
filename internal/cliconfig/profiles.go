package cliconfig

import (
	"fmt"
	"time"

	"github.com/bft-labs/statusled/internal/adapters/serial"
	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/signals"
)

// ProfileConfig is one [[profile]] table.
type ProfileConfig struct {
	Name      string   `toml:"name" yaml:"name"`
	Topic     string   `toml:"topic" yaml:"topic"`
	Color     string   `toml:"color" yaml:"color"`
	Mode      string   `toml:"mode" yaml:"mode"`
	Interval  string   `toml:"interval" yaml:"interval"`
	Duration  string   `toml:"duration" yaml:"duration"`
	Expire    int      `toml:"expire" yaml:"expire"`
	Hold      bool     `toml:"hold" yaml:"hold"`
	Clears    []string `toml:"clears" yaml:"clears"`
	ClearOnly bool     `toml:"clear_only" yaml:"clear_only"`
}

// DefaultProfiles shows the serial link state and flashes on inbound data.
func DefaultProfiles() []ProfileConfig {
	return []ProfileConfig{
		{Name: "link-up", Topic: serial.TopicConnected, Color: "#00ff00", Mode: "static", Hold: true, Clears: []string{"link-down"}},
		{Name: "link-down", Topic: serial.TopicDisconnected, Color: "#ff0000", Mode: "blink", Interval: "1s", Hold: true, Clears: []string{"link-up"}},
		{Name: "rx", Topic: serial.TopicData, Color: "#0000ff", Mode: "blink", Interval: "100ms", Expire: 1, Hold: true},
	}
}

// BuildProfiles converts profile tables into signal profiles.
// An empty list yields DefaultProfiles.
func BuildProfiles(pcs []ProfileConfig) ([]signals.Profile, error) {
	if len(pcs) == 0 {
		pcs = DefaultProfiles()
	}
	out := make([]signals.Profile, 0, len(pcs))
	for _, pc := range pcs {
		p, err := pc.build()
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", pc.Name, err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (pc ProfileConfig) build() (signals.Profile, error) {
	p := signals.Profile{
		Name:      pc.Name,
		Topic:     pc.Topic,
		Hold:      pc.Hold,
		Clears:    pc.Clears,
		ClearOnly: pc.ClearOnly,
	}
	if pc.ClearOnly {
		return p, nil
	}

	c, err := domain.ParseColor(pc.Color)
	if err != nil {
		return p, err
	}
	mode, err := domain.ParseMode(pc.Mode)
	if err != nil {
		return p, err
	}
	interval, err := parseDuration("interval", pc.Interval)
	if err != nil {
		return p, err
	}
	duration, err := parseDuration("duration", pc.Duration)
	if err != nil {
		return p, err
	}
	if pc.Expire < 0 || pc.Expire > 255 {
		return p, fmt.Errorf("%w: expire %d out of range 0-255", domain.ErrInvalidConfig, pc.Expire)
	}

	p.Color = c
	p.Pattern = domain.Pattern{
		Mode:     mode,
		Interval: interval,
		Duration: duration,
		Expire:   uint8(pc.Expire),
	}
	return p, nil
}

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrInvalidConfig, name, s)
	}
	return d, nil
}

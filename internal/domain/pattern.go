package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode selects how an entry's color is drawn over time.
type Mode int

const (
	ModeStatic Mode = iota
	ModeFade
	ModeBlink
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeFade:
		return "fade"
	case ModeBlink:
		return "blink"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeStatic || m == ModeFade || m == ModeBlink
}

// Timed reports whether the mode cycles with an interval.
func (m Mode) Timed() bool {
	return m == ModeFade || m == ModeBlink
}

// ParseMode maps a config string to a Mode. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "static", "solid":
		return ModeStatic, nil
	case "fade", "pulse":
		return ModeFade, nil
	case "blink", "flash":
		return ModeBlink, nil
	}
	return ModeStatic, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Interval bounds for timed modes. The upper bound is a u32 of milliseconds.
const (
	MinInterval = time.Millisecond
	MaxInterval = time.Duration(math.MaxUint32) * time.Millisecond
)

// Pattern is the timing part of an indicator request.
type Pattern struct {
	Mode Mode

	// Interval is the length of one fade or blink cycle.
	Interval time.Duration

	// Duration is the total lifetime budget; 0 means until removed.
	Duration time.Duration

	// Expire is the number of completed cycles before removal; 0 means unlimited.
	Expire uint8
}

// Validate rejects patterns that cannot be rendered.
func (p Pattern) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(p.Mode))
	}
	if p.Mode.Timed() && (p.Interval < MinInterval || p.Interval > MaxInterval) {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, p.Interval)
	}
	if p.Duration < 0 {
		return fmt.Errorf("statusled: negative duration %v", p.Duration)
	}
	return nil
}

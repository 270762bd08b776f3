package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a raw 8-bit RGB triple as written to the output channels.
type Color struct {
	R uint8
	G uint8
	B uint8
}

// Off is the all-channels-zero color.
var Off = Color{}

// ColorFromRGBA unpacks a 0xRRGGBB value. The top byte (alpha) is ignored.
func ColorFromRGBA(rgba uint32) Color {
	return Color{
		R: uint8(rgba >> 16),
		G: uint8(rgba >> 8),
		B: uint8(rgba),
	}
}

// ParseColor accepts "#rrggbb", "0xrrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimPrefix(v, "#")
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v = v[2:]
	}
	if len(v) != 6 {
		return Off, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return Off, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return ColorFromRGBA(uint32(n)), nil
}

// RGBA packs the color back into 0x00RRGGBB.
func (c Color) RGBA() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// IsOff reports whether every channel is zero.
func (c Color) IsOff() bool { return c == Off }

// Scale multiplies every channel by num/den, rounding to nearest.
// num is clamped to [0, den].
func (c Color) Scale(num, den int64) Color {
	if den <= 0 || num <= 0 {
		return Off
	}
	if num >= den {
		return c
	}
	scale := func(v uint8) uint8 {
		return uint8((int64(v)*num + den/2) / den)
	}
	return Color{R: scale(c.R), G: scale(c.G), B: scale(c.B)}
}

// String returns the color as "#rrggbb".
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

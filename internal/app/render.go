package app

import (
	"math"
	"time"

	"github.com/bft-labs/statusled/internal/domain"
)

// completedCycles returns how many whole intervals fit in phase.
// Static entries never complete a cycle.
func completedCycles(p domain.Pattern, phase time.Duration) uint32 {
	if !p.Mode.Timed() || p.Interval <= 0 || phase <= 0 {
		return 0
	}
	n := phase / p.Interval
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// composite returns the instantaneous color of c drawn with p at phase.
func composite(c domain.Color, p domain.Pattern, phase time.Duration) domain.Color {
	switch p.Mode {
	case domain.ModeBlink:
		// Square wave: on for the first half of each cycle.
		if phase%p.Interval < p.Interval/2 {
			return c
		}
		return domain.Off
	case domain.ModeFade:
		num, den := triangle(phase%p.Interval, p.Interval)
		return c.Scale(num, den)
	default:
		return c
	}
}

// triangle is the fade ramp as a fraction: 0 at pos 0, 1 at interval/2, 0 at interval.
func triangle(pos, interval time.Duration) (num, den int64) {
	if 2*pos <= interval {
		return int64(2 * pos), int64(interval)
	}
	return int64(2 * (interval - pos)), int64(interval)
}

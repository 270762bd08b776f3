package app

import (
	"testing"
	"time"

	"github.com/bft-labs/statusled/internal/domain"
)

func TestComposite_Static(t *testing.T) {
	p := domain.Pattern{Mode: domain.ModeStatic}
	for _, phase := range []time.Duration{0, time.Millisecond, time.Hour} {
		if got := composite(green, p, phase); got != green {
			t.Errorf("static at %v = %v, want %v", phase, got, green)
		}
	}
	if n := completedCycles(p, time.Hour); n != 0 {
		t.Errorf("static cycles = %d, want 0", n)
	}
}

func TestComposite_BlinkSquareWave(t *testing.T) {
	const interval = time.Second
	p := domain.Pattern{Mode: domain.ModeBlink, Interval: interval}

	// Sample well below tick resolution across three cycles.
	for phase := time.Duration(0); phase < 3*interval; phase += 7 * time.Millisecond {
		want := domain.Off
		if phase%interval < interval/2 {
			want = green
		}
		if got := composite(green, p, phase); got != want {
			t.Fatalf("blink at %v = %v, want %v", phase, got, want)
		}
	}

	edges := []struct {
		phase time.Duration
		want  domain.Color
	}{
		{0, green},
		{interval/2 - time.Nanosecond, green},
		{interval / 2, domain.Off},
		{interval - time.Nanosecond, domain.Off},
		{interval, green},
	}
	for _, e := range edges {
		if got := composite(green, p, e.phase); got != e.want {
			t.Errorf("blink at %v = %v, want %v", e.phase, got, e.want)
		}
	}
}

func TestComposite_FadeTriangle(t *testing.T) {
	const interval = time.Second
	white := domain.Color{R: 255, G: 255, B: 255}
	p := domain.Pattern{Mode: domain.ModeFade, Interval: interval}

	if got := composite(white, p, 0); got != domain.Off {
		t.Errorf("fade at 0 = %v, want off", got)
	}
	if got := composite(white, p, interval); got != domain.Off {
		t.Errorf("fade at interval (wrapped) = %v, want off", got)
	}
	if got := composite(white, p, interval/2); got != white {
		t.Errorf("fade at peak = %v, want %v", got, white)
	}
	if got := composite(white, p, interval/4); got != (domain.Color{R: 128, G: 128, B: 128}) {
		t.Errorf("fade at quarter = %v, want half brightness", got)
	}

	// Symmetric around the peak and never jumping by more than one step per ms.
	prev := composite(white, p, 0).R
	for ms := 1; ms < 1000; ms++ {
		phase := time.Duration(ms) * time.Millisecond
		got := composite(white, p, phase).R
		mirror := composite(white, p, interval-phase).R
		if got != mirror {
			t.Fatalf("fade not symmetric: %v -> %d, mirror %d", phase, got, mirror)
		}
		diff := int(got) - int(prev)
		if diff < -1 || diff > 1 {
			t.Fatalf("fade jumps %d at %v", diff, phase)
		}
		prev = got
	}
}

func TestCompletedCycles(t *testing.T) {
	p := domain.Pattern{Mode: domain.ModeBlink, Interval: 100 * time.Millisecond}

	tests := []struct {
		phase time.Duration
		want  uint32
	}{
		{0, 0},
		{99 * time.Millisecond, 0},
		{100 * time.Millisecond, 1},
		{250 * time.Millisecond, 2},
	}
	for _, tt := range tests {
		if got := completedCycles(p, tt.phase); got != tt.want {
			t.Errorf("completedCycles(%v) = %d, want %d", tt.phase, got, tt.want)
		}
	}
}

func TestComposite_LongestFadeDoesNotOverflow(t *testing.T) {
	p := domain.Pattern{Mode: domain.ModeFade, Interval: domain.MaxInterval}
	if got := composite(green, p, domain.MaxInterval/2); got != green {
		t.Errorf("fade peak = %v, want %v", got, green)
	}
	if got := composite(green, p, 0); got != domain.Off {
		t.Errorf("fade start = %v, want off", got)
	}
}

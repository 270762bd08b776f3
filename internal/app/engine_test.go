package app

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/pkg/log"
)

// fakeOutput records every write.
type fakeOutput struct {
	mu     sync.Mutex
	writes []domain.Color
}

func (f *fakeOutput) SetRGB(r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, domain.Color{R: r, G: g, B: b})
}

func (f *fakeOutput) Last() domain.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return domain.Off
	}
	return f.writes[len(f.writes)-1]
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type recordedExpiry struct {
	handle Handle
	reason string
}

type fakeRenderEmitter struct {
	mu      sync.Mutex
	heads   []Handle
	expired []recordedExpiry
}

func (f *fakeRenderEmitter) OnHeadChange(previous, current Handle, color domain.Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads = append(f.heads, current)
}

func (f *fakeRenderEmitter) OnExpire(h Handle, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, recordedExpiry{h, reason})
}

var (
	red   = domain.Color{R: 0xFF}
	green = domain.Color{G: 0xFF}
	blue  = domain.Color{B: 0xFF}
)

func newTestEngine(t *testing.T, capacity int) (*Engine, *fakeOutput, *fakeClock, *fakeRenderEmitter) {
	t.Helper()
	out := &fakeOutput{}
	clock := newFakeClock()
	emitter := &fakeRenderEmitter{}
	e := NewEngine(EngineConfig{Capacity: capacity}, out, log.NewNoopLogger(), emitter, clock.Now)
	return e, out, clock, emitter
}

func mustAdd(t *testing.T, e *Engine, rgba uint32, mode domain.Mode, interval, duration time.Duration, expire uint8) Handle {
	t.Helper()
	h, err := e.Add(rgba, mode, interval, duration, expire)
	if err != nil {
		t.Fatalf("Add(%06x, %v) error = %v", rgba, mode, err)
	}
	if !h.Valid() {
		t.Fatalf("Add(%06x, %v) returned invalid handle", rgba, mode)
	}
	return h
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(EngineConfig{}, &fakeOutput{}, log.NewNoopLogger(), nil, nil)

	cfg := e.Config()
	if cfg.TickInterval != 20*time.Millisecond {
		t.Errorf("TickInterval = %v, want 20ms", cfg.TickInterval)
	}
	if cfg.Capacity != 32 {
		t.Errorf("Capacity = %d, want 32", cfg.Capacity)
	}
}

func TestEngine_EmptyRendersOff(t *testing.T) {
	e, out, clock, _ := newTestEngine(t, 4)

	if got := e.Tick(clock.Now()); got != domain.Off {
		t.Errorf("Tick() on empty engine = %v, want off", got)
	}
	if out.Last() != domain.Off {
		t.Errorf("output = %v, want off", out.Last())
	}
}

func TestEngine_EndToEnd_RedGreenBlink(t *testing.T) {
	e, out, clock, _ := newTestEngine(t, 4)
	t0 := clock.Now()

	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	if got := e.Tick(t0); got != red {
		t.Fatalf("after red add: %v, want %v", got, red)
	}

	greenH := mustAdd(t, e, 0x00FF00, domain.ModeBlink, 1000*time.Millisecond, 0, 0)
	if got := e.Tick(t0); got != green {
		t.Fatalf("green blink at t=0: %v, want %v", got, green)
	}

	if got := e.Tick(clock.Advance(600 * time.Millisecond)); got != domain.Off {
		t.Fatalf("green blink at t=600ms: %v, want off", got)
	}

	e.Remove(greenH)
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != red {
		t.Fatalf("after green remove: %v, want %v", got, red)
	}
	if out.Last() != red {
		t.Errorf("output = %v, want %v", out.Last(), red)
	}
}

func TestEngine_HeadIsMostRecent(t *testing.T) {
	e, _, clock, emitter := newTestEngine(t, 4)

	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)
	h := mustAdd(t, e, 0x0000FF, domain.ModeStatic, 0, 0, 0)

	if got := e.Tick(clock.Now()); got != blue {
		t.Errorf("Tick() = %v, want %v", got, blue)
	}

	snap := e.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(snap))
	}
	if !snap[0].Head || snap[0].Handle != h {
		t.Errorf("Snapshot()[0] = %+v, want head %v", snap[0], h)
	}
	if snap[1].Color != green || snap[2].Color != red {
		t.Errorf("stack order = %v,%v, want green,red", snap[1].Color, snap[2].Color)
	}
	if len(emitter.heads) != 1 || emitter.heads[0] != h {
		t.Errorf("head changes = %v, want [%v]", emitter.heads, h)
	}
}

func TestEngine_RemoveNonHeadKeepsColor(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)

	redH := mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)
	e.Tick(clock.Now())

	e.Remove(redH)
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != green {
		t.Errorf("Tick() after non-head remove = %v, want %v", got, green)
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
}

func TestEngine_RemoveHeadPromotesNext(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)

	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	greenH := mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)
	e.Tick(clock.Now())

	e.Remove(greenH)
	if got := e.Color(); got != green {
		t.Errorf("Color() before next tick = %v, want %v", got, green)
	}
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != red {
		t.Errorf("Tick() after head remove = %v, want %v", got, red)
	}
}

func TestEngine_RemoveLastRendersOff(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)

	h := mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	e.Tick(clock.Now())
	e.Remove(h)

	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != domain.Off {
		t.Errorf("Tick() = %v, want off", got)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
}

func TestEngine_RemoveStaleAndDuplicate(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 2)

	h := mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	e.Remove(h)
	e.Remove(h)
	e.Tick(clock.Now())

	// The slot is reused; the old handle must not reach the new entry.
	h2 := mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)
	e.Remove(h)
	e.Remove(Handle{})
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != green {
		t.Errorf("Tick() = %v, want %v", got, green)
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
	e.Remove(h2)
	if err := e.Check(); err != nil {
		t.Errorf("Check() = %v", err)
	}
}

func TestEngine_Add_InvalidRejectedWithoutMutation(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)
	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)

	tests := []struct {
		name    string
		mode    domain.Mode
		wantErr error
	}{
		{"blink zero interval", domain.ModeBlink, domain.ErrInvalidInterval},
		{"fade zero interval", domain.ModeFade, domain.ErrInvalidInterval},
		{"unknown mode", domain.Mode(42), domain.ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := e.Add(0x00FF00, tt.mode, 0, 0, 0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() error = %v, want %v", err, tt.wantErr)
			}
			if h.Valid() {
				t.Errorf("Add() returned valid handle %v on error", h)
			}
		})
	}

	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
	if got := e.Tick(clock.Now()); got != red {
		t.Errorf("Tick() = %v, want %v", got, red)
	}
}

func TestEngine_Add_StoreFull(t *testing.T) {
	e, _, _, _ := newTestEngine(t, 2)

	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)

	h, err := e.Add(0x0000FF, domain.ModeStatic, 0, 0, 0)
	if !errors.Is(err, domain.ErrStoreFull) {
		t.Errorf("Add() error = %v, want ErrStoreFull", err)
	}
	if h.Valid() {
		t.Errorf("Add() returned valid handle on full store")
	}
}

func TestEngine_ExpireAfterExactCycles(t *testing.T) {
	e, _, clock, emitter := newTestEngine(t, 4)
	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	h := mustAdd(t, e, 0x00FF00, domain.ModeBlink, 100*time.Millisecond, 0, 2)

	e.Tick(clock.Now())
	// 180ms: one cycle done, second cycle in its off half.
	for i := 0; i < 9; i++ {
		e.Tick(clock.Advance(20 * time.Millisecond))
	}
	if snap := e.Snapshot(); snap[0].Handle != h || snap[0].Removing {
		t.Fatalf("entry gone or marked before second cycle completed: %+v", snap[0])
	}

	// 200ms: second cycle completes, rendered off and marked.
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != domain.Off {
		t.Errorf("Tick() at expiry = %v, want off", got)
	}
	if snap := e.Snapshot(); !snap[0].Removing || snap[0].Cycles != 2 {
		t.Errorf("head at expiry = %+v, want removing with 2 cycles", snap[0])
	}

	// 220ms: swept, red shows again.
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != red {
		t.Errorf("Tick() after expiry = %v, want %v", got, red)
	}
	if len(emitter.expired) != 1 || emitter.expired[0].handle != h || emitter.expired[0].reason != "cycles" {
		t.Errorf("expired = %+v, want one cycles expiry for %v", emitter.expired, h)
	}
}

func TestEngine_ExpireDoesNotCountDormantTime(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)
	blinkH := mustAdd(t, e, 0xFF0000, domain.ModeBlink, 100*time.Millisecond, 0, 1)
	e.Tick(clock.Now())
	e.Tick(clock.Advance(40 * time.Millisecond))

	// Cover the blink for well over its cycle.
	top := mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)
	for i := 0; i < 10; i++ {
		e.Tick(clock.Advance(20 * time.Millisecond))
	}
	e.Remove(top)
	e.Tick(clock.Advance(20 * time.Millisecond))

	snap := e.Snapshot()
	if len(snap) != 1 || snap[0].Handle != blinkH || snap[0].Removing {
		t.Fatalf("dormant blink expired early: %+v", snap)
	}
}

func TestEngine_UncoveredEntryResumesPhase(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)
	blinkH := mustAdd(t, e, 0xFF0000, domain.ModeBlink, 100*time.Millisecond, 0, 0)
	e.Tick(clock.Now())
	e.Tick(clock.Advance(20 * time.Millisecond))

	top := mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)
	e.Tick(clock.Advance(20 * time.Millisecond))
	e.Remove(top)
	e.Tick(clock.Advance(20 * time.Millisecond))

	phaseOf := func() time.Duration {
		for _, info := range e.Snapshot() {
			if info.Handle == blinkH {
				return info.Phase
			}
		}
		t.Fatal("blink entry missing")
		return 0
	}
	if got := phaseOf(); got != 20*time.Millisecond {
		t.Fatalf("phase after uncover = %v, want 20ms", got)
	}

	e.Tick(clock.Advance(20 * time.Millisecond))
	if got := phaseOf(); got != 40*time.Millisecond {
		t.Errorf("phase one tick later = %v, want 40ms", got)
	}
}

func TestEngine_Add_IntervalBounds(t *testing.T) {
	e, out, _, _ := newTestEngine(t, 4)
	for _, interval := range []time.Duration{time.Nanosecond, domain.MaxInterval + time.Millisecond} {
		if _, err := e.Add(0xFF0000, domain.ModeBlink, interval, 0, 0); !errors.Is(err, domain.ErrInvalidInterval) {
			t.Errorf("Add(blink, %v) error = %v, want ErrInvalidInterval", interval, err)
		}
	}
	if e.Len() != 0 || len(out.writes) != 0 {
		t.Errorf("rejected adds changed state: len=%d writes=%d", e.Len(), len(out.writes))
	}
}

func TestEngine_DurationExpiry(t *testing.T) {
	e, _, clock, emitter := newTestEngine(t, 4)
	h := mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 100*time.Millisecond, 0)

	e.Tick(clock.Now())
	if got := e.Tick(clock.Advance(80 * time.Millisecond)); got != red {
		t.Fatalf("Tick() before duration = %v, want %v", got, red)
	}
	if snap := e.Snapshot(); snap[0].Removing {
		t.Fatalf("marked before duration elapsed")
	}

	// First tick with elapsed >= duration still renders, then marks.
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != red {
		t.Errorf("Tick() at duration = %v, want %v", got, red)
	}
	if snap := e.Snapshot(); !snap[0].Removing {
		t.Errorf("not marked at duration")
	}

	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != domain.Off {
		t.Errorf("Tick() after duration = %v, want off", got)
	}
	if len(emitter.expired) != 1 || emitter.expired[0].handle != h || emitter.expired[0].reason != "duration" {
		t.Errorf("expired = %+v, want one duration expiry", emitter.expired)
	}
}

func TestEngine_DurationExpiresDormantEntries(t *testing.T) {
	e, _, clock, emitter := newTestEngine(t, 4)
	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 50*time.Millisecond, 0)
	top := mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)

	e.Tick(clock.Now())
	e.Tick(clock.Advance(60 * time.Millisecond))
	if len(emitter.expired) != 1 || emitter.expired[0].reason != "duration" {
		t.Fatalf("expired = %+v, want dormant duration expiry", emitter.expired)
	}

	e.Remove(top)
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != domain.Off {
		t.Errorf("Tick() = %v, want off; dormant red should be gone", got)
	}
}

func TestEngine_DurationAndExpire_FirstWins(t *testing.T) {
	tests := []struct {
		name       string
		duration   time.Duration
		expire     uint8
		wantReason string
		ticks      int
	}{
		{"duration first", 60 * time.Millisecond, 5, "duration", 3},
		{"cycles first", time.Second, 1, "cycles", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, clock, emitter := newTestEngine(t, 4)
			mustAdd(t, e, 0x0000FF, domain.ModeFade, 100*time.Millisecond, tt.duration, tt.expire)

			e.Tick(clock.Now())
			for i := 0; i < tt.ticks; i++ {
				e.Tick(clock.Advance(20 * time.Millisecond))
			}
			if len(emitter.expired) != 1 || emitter.expired[0].reason != tt.wantReason {
				t.Errorf("expired = %+v, want one %s expiry", emitter.expired, tt.wantReason)
			}
		})
	}
}

func TestEngine_FadeThroughEngine(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)
	mustAdd(t, e, 0xFF0000, domain.ModeFade, 200*time.Millisecond, 0, 0)

	if got := e.Tick(clock.Now()); got != domain.Off {
		t.Errorf("fade at phase 0 = %v, want off", got)
	}
	if got := e.Tick(clock.Advance(100 * time.Millisecond)); got != red {
		t.Errorf("fade at peak = %v, want %v", got, red)
	}
	if got := e.Tick(clock.Advance(50 * time.Millisecond)); got.R != 128 {
		t.Errorf("fade at 3/4 = %v, want R=128", got)
	}
}

func TestEngine_Clear(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 4)
	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	mustAdd(t, e, 0x00FF00, domain.ModeStatic, 0, 0, 0)
	e.Tick(clock.Now())

	e.Clear()
	if got := e.Tick(clock.Advance(20 * time.Millisecond)); got != domain.Off {
		t.Errorf("Tick() after Clear = %v, want off", got)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
}

func TestEngine_Off(t *testing.T) {
	e, out, clock, _ := newTestEngine(t, 4)
	mustAdd(t, e, 0xFF0000, domain.ModeStatic, 0, 0, 0)
	e.Tick(clock.Now())

	e.Off()
	if out.Last() != domain.Off {
		t.Errorf("output after Off = %v, want off", out.Last())
	}
	if e.Len() != 1 {
		t.Errorf("Off() touched the stack: Len() = %d", e.Len())
	}
}

func TestEngine_ConcurrentAddRemove(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, 16)

	const producers = 8
	const opsPerProducer = 500

	var wg sync.WaitGroup
	stop := make(chan struct{})
	tickErr := make(chan error, 1)

	go func() {
		for {
			select {
			case <-stop:
				close(tickErr)
				return
			default:
			}
			e.Tick(clock.Advance(time.Millisecond))
			if err := e.Check(); err != nil {
				tickErr <- err
				close(tickErr)
				return
			}
		}
	}()

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			var mine []Handle
			for i := 0; i < opsPerProducer; i++ {
				if len(mine) > 0 && rng.Intn(2) == 0 {
					j := rng.Intn(len(mine))
					e.Remove(mine[j])
					mine = append(mine[:j], mine[j+1:]...)
					continue
				}
				mode := domain.Mode(rng.Intn(3))
				h, err := e.Add(rng.Uint32(), mode, 50*time.Millisecond, time.Duration(rng.Intn(3))*10*time.Millisecond, uint8(rng.Intn(3)))
				if err != nil {
					if !errors.Is(err, domain.ErrStoreFull) {
						t.Errorf("Add() unexpected error = %v", err)
					}
					continue
				}
				mine = append(mine, h)
			}
			for _, h := range mine {
				e.Remove(h)
			}
		}(int64(p))
	}

	wg.Wait()
	close(stop)
	if err, ok := <-tickErr; ok && err != nil {
		t.Fatalf("store corrupted during ticks: %v", err)
	}

	e.Tick(clock.Advance(time.Millisecond))
	if err := e.Check(); err != nil {
		t.Fatalf("Check() = %v", err)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d after all producers removed their entries, want 0", e.Len())
	}
}

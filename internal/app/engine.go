package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/internal/store"
	"github.com/bft-labs/statusled/pkg/log"
)

// Handle identifies an indicator request for a later Remove.
type Handle = store.Handle

// EngineConfig contains configuration for the render loop.
type EngineConfig struct {
	// TickInterval is the render period. Fine enough for fades to look
	// continuous and for blink edges to land within one tick.
	TickInterval time.Duration

	// Capacity is the maximum number of concurrent requests.
	Capacity int
}

// DefaultEngineConfig returns the render defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickInterval: 20 * time.Millisecond,
		Capacity:     32,
	}
}

// RenderEventEmitter is called after a tick that changed the head or expired an entry.
type RenderEventEmitter interface {
	OnHeadChange(previous, current Handle, color domain.Color)
	OnExpire(h Handle, reason string)
}

// EntryInfo is a point-in-time copy of one entry.
type EntryInfo struct {
	Handle    Handle
	Color     domain.Color
	Pattern   domain.Pattern
	CreatedAt time.Time
	Phase     time.Duration
	Cycles    uint32
	Removing  bool
	Head      bool
}

// Engine owns the entry store and renders its head to the output.
// Add and Remove are safe from any goroutine; Tick runs on the render goroutine.
type Engine struct {
	config  EngineConfig
	output  ports.Output
	logger  ports.Logger
	emitter RenderEventEmitter
	now     func() time.Time

	mu       sync.Mutex
	store    *store.Store
	lastTick time.Time
	head     Handle
	color    domain.Color
}

type expiry struct {
	handle Handle
	reason string
}

// NewEngine creates an engine. A nil clock uses time.Now.
func NewEngine(
	config EngineConfig,
	output ports.Output,
	logger ports.Logger,
	emitter RenderEventEmitter,
	clock func() time.Time,
) *Engine {
	defaults := DefaultEngineConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.Capacity <= 0 {
		config.Capacity = defaults.Capacity
	}
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		config:  config,
		output:  output,
		logger:  logger,
		emitter: emitter,
		now:     clock,
		store:   store.New(config.Capacity),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig { return e.config }

// Add pushes a request on top of the indicator stack.
// rgba is 0xRRGGBB; the alpha byte is ignored.
func (e *Engine) Add(rgba uint32, mode domain.Mode, interval, duration time.Duration, expire uint8) (Handle, error) {
	return e.AddColor(domain.ColorFromRGBA(rgba), domain.Pattern{
		Mode:     mode,
		Interval: interval,
		Duration: duration,
		Expire:   expire,
	})
}

// AddColor pushes c drawn with p on top of the indicator stack.
// Invalid patterns are rejected without touching the stack; a full store
// returns domain.ErrStoreFull and an invalid handle.
func (e *Engine) AddColor(c domain.Color, p domain.Pattern) (Handle, error) {
	if err := p.Validate(); err != nil {
		return Handle{}, err
	}
	entry := store.Entry{Color: c, Pattern: p, CreatedAt: e.now()}

	e.mu.Lock()
	h, err := e.store.PushFront(entry)
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("indicator request dropped",
			log.Stringer("color", c),
			log.Stringer("mode", p.Mode),
			log.Err(err),
		)
		return Handle{}, err
	}
	return h, nil
}

// Remove asks for h to be dropped at the next tick.
// Stale, invalid or already-removed handles are ignored.
func (e *Engine) Remove(h Handle) {
	e.mu.Lock()
	e.store.MarkForRemoval(h)
	e.mu.Unlock()
}

// Clear asks for every entry to be dropped at the next tick.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.store.Each(func(n *store.Node) bool {
		e.store.MarkForRemoval(n.Handle())
		return true
	})
	e.mu.Unlock()
}

// Tick runs one render step at now and returns the color written.
func (e *Engine) Tick(now time.Time) domain.Color {
	e.mu.Lock()
	prevHead := e.head
	color, expired := e.render(now)
	e.output.SetRGB(color.R, color.G, color.B)
	curHead := e.head
	e.mu.Unlock()

	if curHead != prevHead {
		e.logger.Debug("indicator head changed",
			log.Stringer("from", prevHead),
			log.Stringer("to", curHead),
			log.Stringer("color", color),
		)
		if e.emitter != nil {
			e.emitter.OnHeadChange(prevHead, curHead, color)
		}
	}
	for _, x := range expired {
		e.logger.Debug("indicator entry expired",
			log.Stringer("handle", x.handle),
			log.String("reason", x.reason),
		)
		if e.emitter != nil {
			e.emitter.OnExpire(x.handle, x.reason)
		}
	}
	return color
}

// render must be called with e.mu held.
func (e *Engine) render(now time.Time) (domain.Color, []expiry) {
	e.store.Sweep()

	head, ok := e.store.Head()
	if !ok {
		e.head = Handle{}
		e.color = domain.Off
		e.advance(now)
		return domain.Off, nil
	}

	var expired []expiry

	// An entry pushed since the last tick has been on top since it was
	// created. One that was already there was uncovered on this tick.
	from := e.lastTick
	switch {
	case !head.Runtime.Seen:
		if head.Entry.CreatedAt.After(from) {
			from = head.Entry.CreatedAt
		}
	case head.Handle() != e.head:
		from = now
	}

	// Dormant entries keep their phase but not their lifetime.
	e.store.Each(func(n *store.Node) bool {
		n.Runtime.Seen = true
		if n != head && !n.Removing() && durationSpent(n.Entry, now) {
			e.store.MarkForRemoval(n.Handle())
			expired = append(expired, expiry{n.Handle(), "duration"})
		}
		return true
	})

	if dt := now.Sub(from); dt > 0 {
		head.Runtime.Phase += dt
	}
	head.Runtime.LastTick = now

	p := head.Entry.Pattern
	head.Runtime.Cycles = completedCycles(p, head.Runtime.Phase)
	color := composite(head.Entry.Color, p, head.Runtime.Phase)

	reason := ""
	switch {
	case p.Expire > 0 && head.Runtime.Cycles >= uint32(p.Expire):
		// The last cycle ended on this tick; show its end, not the start of another.
		color = domain.Off
		reason = "cycles"
	case durationSpent(head.Entry, now):
		reason = "duration"
	}
	if reason != "" && e.store.MarkForRemoval(head.Handle()) {
		expired = append(expired, expiry{head.Handle(), reason})
	}

	e.head = head.Handle()
	e.color = color
	e.advance(now)
	return color, expired
}

func (e *Engine) advance(now time.Time) {
	if now.After(e.lastTick) {
		e.lastTick = now
	}
}

func durationSpent(entry store.Entry, now time.Time) bool {
	d := entry.Pattern.Duration
	return d > 0 && now.Sub(entry.CreatedAt) >= d
}

// Run ticks until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	e.Tick(e.now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick(e.now())
		}
	}
}

// Color returns the color written by the last tick.
func (e *Engine) Color() domain.Color {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.color
}

// Len returns the number of entries in the stack, including ones awaiting removal.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Len()
}

// Snapshot returns a copy of the stack, head first.
func (e *Engine) Snapshot() []EntryInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]EntryInfo, 0, e.store.Len())
	first := true
	e.store.Each(func(n *store.Node) bool {
		out = append(out, EntryInfo{
			Handle:    n.Handle(),
			Color:     n.Entry.Color,
			Pattern:   n.Entry.Pattern,
			CreatedAt: n.Entry.CreatedAt,
			Phase:     n.Runtime.Phase,
			Cycles:    n.Runtime.Cycles,
			Removing:  n.Removing(),
			Head:      first,
		})
		first = false
		return true
	})
	return out
}

// Check verifies the store's structural invariants.
func (e *Engine) Check() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Check()
}

// Off writes all-zero channels without touching the stack.
func (e *Engine) Off() {
	e.mu.Lock()
	e.color = domain.Off
	e.output.SetRGB(0, 0, 0)
	e.mu.Unlock()
}

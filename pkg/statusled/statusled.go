package statusled

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/statusled/internal/app"
	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/pkg/log"
)

// Indicator is one status light shared by many callers.
// Construct it once with New, Start it, and pass it to every subsystem
// that shows a state.
type Indicator struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	engine    *app.Engine
	output    Output
	logger    ports.Logger
	plugins   []Plugin

	mu     sync.Mutex
	cancel context.CancelFunc
	active []Plugin
}

// New creates an Indicator in StateStopped. Requests may be added before
// Start; nothing is rendered until the render loop runs.
func New(cfg Config, opts ...Option) (*Indicator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}
	if o.output == nil {
		o.output = discardOutput{}
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	engine := app.NewEngine(app.EngineConfig{
		TickInterval: cfg.TickInterval,
		Capacity:     cfg.Capacity,
	}, o.output, o.logger, emitter, o.clock)

	return &Indicator{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(o.logger, emitter),
		engine:    engine,
		output:    o.output,
		logger:    o.logger,
		plugins:   o.plugins,
	}, nil
}

// Init creates an Indicator and starts it.
func Init(ctx context.Context, cfg Config, opts ...Option) (*Indicator, error) {
	ind, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := ind.Start(ctx); err != nil {
		return nil, err
	}
	return ind, nil
}

// Start initializes the output and plugins and runs the render loop in the
// background until Stop or ctx cancellation.
func (ind *Indicator) Start(ctx context.Context) error {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	if !ind.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := ind.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	if initializer, ok := ind.output.(ports.OutputInitializer); ok {
		if err := initializer.Init(); err != nil {
			ind.logger.Error("output initialization failed", log.Err(err))
			_ = ind.lifecycle.TransitionTo(app.StateCrashed, "output init failed")
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	ind.cancel = cancel
	ind.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{Logger: ind.logger, Indicator: ind}
	ind.active = ind.active[:0]
	for _, p := range ind.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			ind.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			ind.shutdownPlugins()
			ind.closeOutput()
			_ = ind.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		ind.active = append(ind.active, p)
		ind.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	ind.lifecycle.Go(func() {
		if err := ind.lifecycle.TransitionTo(app.StateRunning, "render loop starting"); err != nil {
			if ind.lifecycle.State() == app.StateStopping {
				ind.logger.Debug("stopped before render loop started")
				return
			}
			ind.logger.Error("failed to transition to running", log.Err(err))
			return
		}

		err := ind.engine.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			ind.logger.Error("render loop error", log.Err(err))
			_ = ind.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})
	return nil
}

// Stop ends the render loop, turns the light off and shuts down plugins.
// Returns ErrShutdownTimeout if the render loop does not exit in time.
func (ind *Indicator) Stop() error {
	ind.mu.Lock()
	if !ind.lifecycle.CanStop() {
		ind.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := ind.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		ind.mu.Unlock()
		return err
	}
	if ind.cancel != nil {
		ind.cancel()
	}
	ind.mu.Unlock()

	err := ind.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	ind.mu.Lock()
	ind.shutdownPlugins()
	ind.mu.Unlock()

	ind.engine.Off()
	ind.closeOutput()

	if err != nil {
		_ = ind.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = ind.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

func (ind *Indicator) closeOutput() {
	if closer, ok := ind.output.(ports.OutputCloser); ok {
		if err := closer.Close(); err != nil {
			ind.logger.Warn("output close failed", log.Err(err))
		}
	}
}

// shutdownPlugins must be called with ind.mu held.
func (ind *Indicator) shutdownPlugins() {
	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	for i := len(ind.active) - 1; i >= 0; i-- {
		p := ind.active[i]
		if err := p.Shutdown(ctx); err != nil {
			ind.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			ind.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
	ind.active = ind.active[:0]
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (ind *Indicator) Status() State {
	return convertState(ind.lifecycle.State())
}

// Add pushes a request on top of the stack. rgba is 0xRRGGBB; the top byte
// is ignored. interval is the cycle length for Fade and Blink; duration and
// expire of zero mean unlimited.
func (ind *Indicator) Add(rgba uint32, mode Mode, interval, duration time.Duration, expire uint8) (Handle, error) {
	return ind.engine.Add(rgba, mode, interval, duration, expire)
}

// AddColor pushes c drawn with p on top of the stack.
func (ind *Indicator) AddColor(c Color, p Pattern) (Handle, error) {
	return ind.engine.AddColor(c, p)
}

// Remove drops a request at the next tick. It is safe to call with a handle
// that already expired or was already removed.
func (ind *Indicator) Remove(h Handle) {
	ind.engine.Remove(h)
}

// Clear drops every request at the next tick.
func (ind *Indicator) Clear() {
	ind.engine.Clear()
}

// Color returns the color written by the last tick.
func (ind *Indicator) Color() Color {
	return ind.engine.Color()
}

// Len returns the number of requests on the stack.
func (ind *Indicator) Len() int {
	return ind.engine.Len()
}

// Snapshot returns the stack, head first.
func (ind *Indicator) Snapshot() []EntryInfo {
	return ind.engine.Snapshot()
}

// Config returns the effective configuration.
func (ind *Indicator) Config() Config {
	return ind.config
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnHeadChange(previous, current app.Handle, color domain.Color) {
	if e.handler == nil {
		return
	}
	e.handler.OnHeadChange(HeadChangeEvent{Previous: previous, Current: current, Color: color})
}

func (e *eventEmitterWrapper) OnExpire(h app.Handle, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnExpire(ExpireEvent{Handle: h, Reason: reason})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

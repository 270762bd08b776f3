package statusled

import (
	"time"

	"github.com/bft-labs/statusled/pkg/log"
)

// Option configures optional behavior of an Indicator.
type Option func(*options)

type options struct {
	logger       Logger
	output       Output
	clock        func() time.Time
	eventHandler EventHandler
	plugins      []Plugin
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		output: discardOutput{},
		clock:  time.Now,
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithOutput sets the indicator hardware. If it also has Init() error or
// Close() error, they are called on Start and Stop.
// If not provided, colors are discarded.
func WithOutput(output Output) Option {
	return func(o *options) {
		o.output = output
	}
}

// WithClock replaces time.Now for request timestamps and ticks.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithEventHandler sets a handler for Indicator events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the Indicator starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

type discardOutput struct{}

func (discardOutput) SetRGB(r, g, b uint8) {}

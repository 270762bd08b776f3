package output

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/pkg/log"
)

// DefaultFrequency is the PWM carrier used when none is configured.
const DefaultFrequency = physic.KiloHertz

// Pin is the subset of gpio.PinIO the PWM adapter drives.
type Pin interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
	Out(l gpio.Level) error
	Halt() error
	String() string
}

// PWMConfig names the three channel pins as known to gpioreg.
type PWMConfig struct {
	Red       string
	Green     string
	Blue      string
	Frequency physic.Frequency
	// ActiveLow inverts the duty cycle, for common-anode LEDs.
	ActiveLow bool
}

// PWM implements ports.Output on three periph.io GPIO pins.
type PWM struct {
	config PWMConfig
	logger ports.Logger

	hostInit func() error
	resolve  func(name string) (Pin, error)

	mu      sync.Mutex
	pins    [3]Pin
	last    [3]uint8
	written bool
	failing [3]bool
}

// NewPWM creates a PWM output. Pins are resolved by Init.
func NewPWM(config PWMConfig, logger ports.Logger) *PWM {
	if config.Frequency <= 0 {
		config.Frequency = DefaultFrequency
	}
	return &PWM{
		config:   config,
		logger:   logger,
		hostInit: initHost,
		resolve:  byName,
	}
}

func initHost() error {
	_, err := host.Init()
	return err
}

func byName(name string) (Pin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %q not found", name)
	}
	return p, nil
}

// Init loads the host drivers and resolves the channel pins.
func (o *PWM) Init() error {
	if err := o.hostInit(); err != nil {
		return fmt.Errorf("init host drivers: %w", err)
	}

	names := [3]string{o.config.Red, o.config.Green, o.config.Blue}
	var pins [3]Pin
	for i, name := range names {
		p, err := o.resolve(name)
		if err != nil {
			return fmt.Errorf("resolve %s channel: %w", channelName(i), err)
		}
		pins[i] = p
	}

	o.mu.Lock()
	o.pins = pins
	o.written = false
	o.mu.Unlock()

	o.logger.Info("pwm output ready",
		log.String("red", pins[0].String()),
		log.String("green", pins[1].String()),
		log.String("blue", pins[2].String()),
		log.Stringer("frequency", o.config.Frequency),
		log.Bool("active_low", o.config.ActiveLow),
	)
	return nil
}

// SetRGB drives the three channels. Unchanged channels are not rewritten.
// Before Init it is a no-op.
func (o *PWM) SetRGB(r, g, b uint8) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pins[0] == nil {
		return
	}
	values := [3]uint8{r, g, b}
	for i, v := range values {
		if o.written && o.last[i] == v && !o.failing[i] {
			continue
		}
		o.drive(i, v)
		o.last[i] = v
	}
	o.written = true
}

// drive must be called with o.mu held.
func (o *PWM) drive(i int, v uint8) {
	pin := o.pins[i]
	err := pin.PWM(o.duty(v), o.config.Frequency)
	if err != nil {
		// No PWM on this pin; fall back to on/off at half brightness.
		err = pin.Out(o.level(v))
	}
	if err != nil {
		if !o.failing[i] {
			o.logger.Error("output write failed",
				log.String("channel", channelName(i)),
				log.String("pin", pin.String()),
				log.Err(err),
			)
		}
		o.failing[i] = true
		return
	}
	if o.failing[i] {
		o.logger.Info("output write recovered", log.String("channel", channelName(i)))
	}
	o.failing[i] = false
}

func (o *PWM) duty(v uint8) gpio.Duty {
	d := gpio.Duty(int64(v) * int64(gpio.DutyMax) / 255)
	if o.config.ActiveLow {
		d = gpio.DutyMax - d
	}
	return d
}

func (o *PWM) level(v uint8) gpio.Level {
	on := v >= 128
	if o.config.ActiveLow {
		on = !on
	}
	return gpio.Level(on)
}

// Close halts the pins. The caller writes off first.
func (o *PWM) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var first error
	for i, p := range o.pins {
		if p == nil {
			continue
		}
		if err := p.Halt(); err != nil && first == nil {
			first = fmt.Errorf("halt %s channel: %w", channelName(i), err)
		}
		o.pins[i] = nil
	}
	return first
}

func channelName(i int) string {
	switch i {
	case 0:
		return "red"
	case 1:
		return "green"
	default:
		return "blue"
	}
}

package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	goserial "github.com/goburrow/serial"

	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/pkg/log"
)

// Topics published by the transport.
const (
	TopicData         = "transport.data"
	TopicConnected    = "transport.connected"
	TopicDisconnected = "transport.disconnected"
)

// publishTimeout bounds events raised from Write, which may run on the bus
// dispatch goroutine through a mirrored log line.
const publishTimeout = 100 * time.Millisecond

// Config holds the UART settings.
type Config struct {
	Address  string
	BaudRate int
	DataBits int
	StopBits int
	// Parity is "N", "E" or "O".
	Parity string

	// ReadTimeout bounds each read so the reader can notice shutdown.
	ReadTimeout time.Duration

	// LogForward enables Log; when false Log writes nothing.
	LogForward bool

	// FlowControlRTS and FlowControlCTS are accepted but not supported by the driver.
	FlowControlRTS bool
	FlowControlCTS bool

	ReadBufferSize int
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

// DefaultConfig returns 115200 8N1 with a 50ms read timeout.
func DefaultConfig() Config {
	return Config{
		BaudRate:       115200,
		DataBits:       8,
		StopBits:       1,
		Parity:         "N",
		ReadTimeout:    50 * time.Millisecond,
		ReadBufferSize: 1024,
		ReconnectMin:   500 * time.Millisecond,
		ReconnectMax:   30 * time.Second,
	}
}

// Opener opens the port described by c.
type Opener func(c *goserial.Config) (io.ReadWriteCloser, error)

func openPort(c *goserial.Config) (io.ReadWriteCloser, error) {
	return goserial.Open(c)
}

// Transport is a byte-stream wrapper over a UART.
// Writes are best effort and report the number of bytes written, or zero.
type Transport struct {
	config    Config
	publisher ports.Publisher
	logger    ports.Logger
	open      Opener

	mu     sync.Mutex
	port   io.ReadWriteCloser
	closed bool
}

// New creates a transport. publisher may be nil.
func New(config Config, publisher ports.Publisher, logger ports.Logger) *Transport {
	defaults := DefaultConfig()
	if config.BaudRate <= 0 {
		config.BaudRate = defaults.BaudRate
	}
	if config.DataBits <= 0 {
		config.DataBits = defaults.DataBits
	}
	if config.StopBits <= 0 {
		config.StopBits = defaults.StopBits
	}
	if config.Parity == "" {
		config.Parity = defaults.Parity
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = defaults.ReadBufferSize
	}
	if config.ReconnectMin <= 0 {
		config.ReconnectMin = defaults.ReconnectMin
	}
	if config.ReconnectMax < config.ReconnectMin {
		config.ReconnectMax = defaults.ReconnectMax
	}
	config.Parity = strings.ToUpper(config.Parity)

	return &Transport{
		config:    config,
		publisher: publisher,
		logger:    logger,
		open:      openPort,
	}
}

// SetOpener replaces the port opener.
func (t *Transport) SetOpener(open Opener) {
	t.open = open
}

func (t *Transport) driverConfig() *goserial.Config {
	return &goserial.Config{
		Address:  t.config.Address,
		BaudRate: t.config.BaudRate,
		DataBits: t.config.DataBits,
		StopBits: t.config.StopBits,
		Parity:   t.config.Parity,
		Timeout:  t.config.ReadTimeout,
	}
}

// Open opens the port. Run calls it as needed; calling it first surfaces
// configuration errors at startup.
func (t *Transport) Open() error {
	if t.config.FlowControlRTS || t.config.FlowControlCTS {
		t.logger.Warn("hardware flow control not supported by serial driver, ignoring",
			log.Bool("rts", t.config.FlowControlRTS),
			log.Bool("cts", t.config.FlowControlCTS),
		)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.ErrTransportClosed
	}
	if t.port != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	p, err := t.open(t.driverConfig())
	if err != nil {
		return fmt.Errorf("open %s: %w", t.config.Address, err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		p.Close()
		return domain.ErrTransportClosed
	}
	t.port = p
	t.mu.Unlock()

	t.logger.Info("serial port open",
		log.String("address", t.config.Address),
		log.Int("baud", t.config.BaudRate),
		log.String("format", fmt.Sprintf("%d%s%d", t.config.DataBits, t.config.Parity, t.config.StopBits)),
	)
	t.publish(context.Background(), TopicConnected, t.config.Address)
	return nil
}

// Write sends p and returns the bytes written, or 0 when the port is not open.
// A failed write drops the port so Run reopens it.
func (t *Transport) Write(p []byte) int {
	t.mu.Lock()
	port := t.port
	if port == nil {
		t.mu.Unlock()
		return 0
	}
	n, err := port.Write(p)
	if err != nil {
		t.dropLocked()
	}
	t.mu.Unlock()

	if err != nil {
		// The port is already gone, so a mirrored log line cannot recurse here.
		t.logger.Warn("serial write failed", log.Err(err))
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		t.publish(ctx, TopicDisconnected, err.Error())
		cancel()
	}
	return n
}

// Log forwards a log line when log forwarding is enabled.
func (t *Transport) Log(p []byte) int {
	if !t.config.LogForward {
		return 0
	}
	return t.Write(p)
}

// NMEA formats a sentence body, appends its checksum and writes it.
func (t *Transport) NMEA(format string, args ...interface{}) int {
	return t.Write([]byte(FormatNMEA(fmt.Sprintf(format, args...))))
}

// LogWriter adapts Log to io.Writer for mirroring the process log.
// It never reports an error.
func (t *Transport) LogWriter() io.Writer {
	return logWriter{t}
}

type logWriter struct{ t *Transport }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(p)
	return len(p), nil
}

// Run reads the port until ctx is done, publishing every chunk as
// TopicData. Lost or unopenable ports are retried with backoff.
func (t *Transport) Run(ctx context.Context) error {
	bo := newBackoff(t.config.ReconnectMin, t.config.ReconnectMax)
	buf := make([]byte, t.config.ReadBufferSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		port, err := t.current()
		if errors.Is(err, domain.ErrTransportClosed) {
			return nil
		}
		if port == nil {
			if err := t.Open(); err != nil {
				if errors.Is(err, domain.ErrTransportClosed) {
					return nil
				}
				t.logger.Warn("serial open failed, retrying", log.Err(err))
				if err := bo.Wait(ctx); err != nil {
					return err
				}
			}
			continue
		}

		n, err := port.Read(buf)
		if n > 0 {
			bo.Reset()
			data := make([]byte, n)
			copy(data, buf[:n])
			t.publish(ctx, TopicData, data)
		}
		switch {
		case err == nil, errors.Is(err, goserial.ErrTimeout):
		case t.isClosed():
			return nil
		default:
			t.logger.Error("serial read failed", log.Err(err))
			t.mu.Lock()
			if t.port == port {
				t.dropLocked()
			}
			t.mu.Unlock()
			t.publish(ctx, TopicDisconnected, err.Error())
		}
	}
}

func (t *Transport) current() (io.ReadWriteCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, domain.ErrTransportClosed
	}
	return t.port, nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// dropLocked must be called with t.mu held.
func (t *Transport) dropLocked() {
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
}

func (t *Transport) publish(ctx context.Context, topic string, payload interface{}) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, ports.Event{Topic: topic, Payload: payload, At: time.Now()}); err != nil {
		t.logger.Debug("transport event dropped", log.String("topic", topic), log.Err(err))
	}
}

// Connected reports whether the port is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Close closes the port. Later writes return 0 and Run exits.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

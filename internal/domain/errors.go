package domain

import "errors"

// Domain errors represent error conditions in the statusled domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrStoreFull is returned when no entry slot is left for a new request.
	// Callers should carry on without visual feedback.
	ErrStoreFull = errors.New("statusled: entry store full")

	// ErrInvalidInterval is returned when a timed mode is requested with an
	// interval outside MinInterval..MaxInterval.
	ErrInvalidInterval = errors.New("statusled: invalid interval for timed mode")

	// ErrInvalidMode is returned for an unknown flashing mode.
	ErrInvalidMode = errors.New("statusled: invalid flashing mode")

	// ErrInvalidColor is returned when a color string cannot be parsed.
	ErrInvalidColor = errors.New("statusled: invalid color")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("statusled: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("statusled: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("statusled: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("statusled: invalid configuration")

	// ErrBusClosed is returned when publishing to a closed event bus.
	ErrBusClosed = errors.New("statusled: event bus closed")

	// ErrTransportClosed is returned when the diagnostic transport has no open port.
	ErrTransportClosed = errors.New("statusled: transport closed")
)

package statusled

import (
	"github.com/bft-labs/statusled/internal/app"
	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/pkg/log"
)

// Handle identifies a request for Remove. The zero Handle is invalid.
type Handle = app.Handle

// Color is a raw 8-bit RGB triple.
type Color = domain.Color

// Mode selects how a request is drawn over time.
type Mode = domain.Mode

// Pattern is the timing part of a request.
type Pattern = domain.Pattern

// EntryInfo describes one request in a Snapshot.
type EntryInfo = app.EntryInfo

// Output drives the physical indicator.
type Output = ports.Output

// Logger is the interface for structured logging.
type Logger = log.Logger

// Modes.
const (
	ModeStatic = domain.ModeStatic
	ModeFade   = domain.ModeFade
	ModeBlink  = domain.ModeBlink
)

// Errors returned by the Indicator.
var (
	ErrStoreFull       = domain.ErrStoreFull
	ErrInvalidInterval = domain.ErrInvalidInterval
	ErrInvalidMode     = domain.ErrInvalidMode
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
)

// ParseColor accepts "#rrggbb", "0xrrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) { return domain.ParseColor(s) }

// ParseMode maps a name such as "blink" to a Mode.
func ParseMode(s string) (Mode, error) { return domain.ParseMode(s) }

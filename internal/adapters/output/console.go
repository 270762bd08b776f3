package output

import (
	"sync"

	"github.com/bft-labs/statusled/internal/domain"
	"github.com/bft-labs/statusled/internal/ports"
	"github.com/bft-labs/statusled/pkg/log"
)

// Console implements ports.Output by logging color changes.
// Used on hosts without an LED and by --demo.
type Console struct {
	logger ports.Logger

	mu      sync.Mutex
	last    domain.Color
	written bool
}

// NewConsole creates a console output.
func NewConsole(logger ports.Logger) *Console {
	return &Console{logger: logger}
}

// SetRGB logs c when it differs from the previous write.
func (o *Console) SetRGB(r, g, b uint8) {
	c := domain.Color{R: r, G: g, B: b}

	o.mu.Lock()
	changed := !o.written || c != o.last
	o.last = c
	o.written = true
	o.mu.Unlock()

	if changed {
		o.logger.Info("indicator", log.Stringer("color", c))
	}
}

// Color returns the last written color.
func (o *Console) Color() domain.Color {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

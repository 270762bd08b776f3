// Package statusled multiplexes one RGB status light between many callers.
//
// Example usage:
//
//	ind, err := statusled.Init(ctx, statusled.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ind.Stop()
//
//	h, _ := ind.Add(0xff0000, statusled.ModeBlink, time.Second, 0, 0)
//	defer ind.Remove(h)
//
// See pkg/statusled for options, events and plugins.
package statusled

import (
	"context"

	"github.com/bft-labs/statusled/pkg/statusled"
)

// Config holds the render settings. Use DefaultConfig() for defaults.
type Config = statusled.Config

// Indicator is the shared status light.
type Indicator = statusled.Indicator

// Handle identifies one request.
type Handle = statusled.Handle

// Mode selects how a request is drawn.
type Mode = statusled.Mode

// Option configures an Indicator.
type Option = statusled.Option

const (
	ModeStatic = statusled.ModeStatic
	ModeFade   = statusled.ModeFade
	ModeBlink  = statusled.ModeBlink
)

// DefaultConfig returns a Config with a 20ms tick and room for 32 requests.
func DefaultConfig() Config {
	return statusled.DefaultConfig()
}

// Init creates an Indicator and starts its render loop.
// Call Stop on the result to turn the light off and release the output.
func Init(ctx context.Context, cfg Config, opts ...Option) (*Indicator, error) {
	return statusled.Init(ctx, cfg, opts...)
}

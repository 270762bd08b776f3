// Package statusled drives a single RGB status light shared by many
// independent callers.
//
// Each caller pushes a request (a color plus a static, fade or blink
// pattern) and gets a Handle back. The most recent live request is the
// one shown; when it is removed or expires, the light falls back to the
// next one down. Requests may limit themselves by a number of completed
// cycles, a wall-clock duration, or both.
//
// Basic usage:
//
//	ind, err := statusled.New(statusled.DefaultConfig(),
//	    statusled.WithOutput(out),
//	    statusled.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := ind.Start(ctx); err != nil {
//	    return err
//	}
//	defer ind.Stop()
//
//	link, _ := ind.Add(0x00ff00, statusled.ModeStatic, 0, 0, 0)
//	ind.Add(0x0000ff, statusled.ModeBlink, 100*time.Millisecond, 0, 1)
//	ind.Remove(link)
//
// Add, Remove and Clear are safe to call from any goroutine, before or
// after Start.
package statusled

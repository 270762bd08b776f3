package ports

// Output drives the indicator hardware.
// SetRGB must not block; write failures are handled (logged) by the adapter.
type Output interface {
	SetRGB(r, g, b uint8)
}

// OutputInitializer is implemented by outputs that need setup before the first write.
type OutputInitializer interface {
	Init() error
}

// OutputCloser is implemented by outputs that release hardware on shutdown.
type OutputCloser interface {
	Close() error
}

package configwatcher

import "github.com/bft-labs/statusled/pkg/statusled"

// WithConfigWatcher returns a statusled Option that reloads on file changes.
//
// Usage:
//
//	ind, err := statusled.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:     "/etc/statusled/config.toml",
//	        OnChange: reload,
//	    }),
//	)
func WithConfigWatcher(cfg Config) statusled.Option {
	return statusled.WithPlugin(New(cfg))
}

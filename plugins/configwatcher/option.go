package configwatcher

import "github.com/bft-labs/groupcast/pkg/coordinator"

// WithConfigWatcher returns a coordinator Option that reloads the replay
// threshold whenever the coordinator's config file changes.
//
// Usage:
//
//	c, err := coordinator.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/groupcast/coordinator.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) coordinator.Option {
	return coordinator.WithPlugin(New(cfg))
}

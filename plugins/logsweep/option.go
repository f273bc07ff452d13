package logsweep

import "github.com/bft-labs/groupcast/pkg/coordinator"

// WithLogSweep returns a coordinator Option that periodically deletes
// offline logs left behind by participants that are no longer registered.
//
// Usage:
//
//	c, err := coordinator.New(cfg,
//	    logsweep.WithLogSweep(logsweep.Config{
//	        Interval: time.Hour,
//	        MaxAge:   24 * time.Hour,
//	    }),
//	)
func WithLogSweep(cfg Config) coordinator.Option {
	return coordinator.WithPlugin(New(cfg))
}

// WithDefaultLogSweep enables the sweeper with default settings (check
// every hour, delete orphans older than 24h).
func WithDefaultLogSweep() coordinator.Option {
	return WithLogSweep(DefaultConfig())
}

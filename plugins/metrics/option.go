package metrics

import "github.com/bft-labs/groupcast/pkg/coordinator"

// WithMetrics returns a coordinator Option that records Prometheus metrics
// and, when cfg.Addr is set, serves them on /metrics.
//
// Usage:
//
//	c, err := coordinator.New(cfg,
//	    metrics.WithMetrics(metrics.Config{Addr: ":9090"}),
//	)
func WithMetrics(cfg Config) coordinator.Option {
	return coordinator.WithPlugin(New(cfg))
}

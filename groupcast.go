// Package groupcast provides a coordinator for a small persistent,
// time-bounded multicast group.
//
// Example usage:
//
//	cfg := groupcast.DefaultConfig()
//	cfg.ListenAddr = ":5000"
//	cfg.Threshold = 30
//	if err := groupcast.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
package groupcast

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bft-labs/groupcast/internal/cliconfig"
	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/pkg/coordinator"
	"github.com/bft-labs/groupcast/pkg/log"
)

// Config holds the configuration of a coordinator.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = coordinator.Config

// Session describes one registered participant.
type Session = coordinator.Session

// Run starts a coordinator with the given configuration and blocks until
// ctx is cancelled, then stops it. Offline logs and the registry are kept
// for the next Run.
func Run(ctx context.Context, cfg Config, opts ...coordinator.Option) error {
	c, err := coordinator.New(cfg, append([]coordinator.Option{
		coordinator.WithLogger(log.NewZerologAdapterWithLogger(Logger())),
	}, opts...)...)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := c.Stop(); err != nil && !errors.Is(err, coordinator.ErrNotRunning) {
		return err
	}
	return nil
}

// DefaultConfig returns a Config listening on :5000 with a 30 second
// replay window.
func DefaultConfig() Config {
	cfg := Config{
		ListenAddr: ":5000",
		Threshold:  30,
		Capacity:   domain.MaxSessions,
	}
	cfg.SetDefaults()
	return cfg
}

// Logger returns the console logger used by the command-line tools.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}

// MaxSessions is the default number of participants a coordinator admits.
const MaxSessions = domain.MaxSessions

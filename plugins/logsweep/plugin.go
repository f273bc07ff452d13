// Package logsweep removes orphaned offline logs.
//
// A log file outlives its participant when the coordinator crashes between
// a deregister and the file removal, or when registry.json is deleted by
// hand. Such files are never read again.
package logsweep

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	gcfs "github.com/bft-labs/groupcast/internal/adapters/fs"
	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/pkg/coordinator"
	"github.com/bft-labs/groupcast/pkg/log"
)

// Plugin periodically deletes storage<ID>.txt files whose participant is not
// registered and that have not been modified for MaxAge.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	interval       time.Duration
	maxAge         time.Duration
	runImmediately bool
	now            func() time.Time

	// Runtime state
	store      *gcfs.OfflineLogStore
	controller coordinator.Controller
	logger     log.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Config holds configuration options for the log sweeper.
type Config struct {
	// Interval is how often to scan the log directory.
	// Default: 1 hour
	Interval time.Duration

	// MaxAge is how long an orphaned log is kept after its last write.
	// Default: 24 hours
	MaxAge time.Duration

	// RunImmediately runs a sweep on startup.
	RunImmediately bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:       time.Hour,
		MaxAge:         24 * time.Hour,
		RunImmediately: true,
	}
}

// New creates a new log sweeper with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return &Plugin{
		interval:       cfg.Interval,
		maxAge:         cfg.MaxAge,
		runImmediately: cfg.RunImmediately,
		now:            time.Now,
		logger:         log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "logsweep"
}

// Initialize starts the sweep loop over cfg.LogDir.
func (p *Plugin) Initialize(ctx context.Context, cfg coordinator.PluginConfig) error {
	p.mu.Lock()
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	p.controller = cfg.Coordinator
	if cfg.LogDir != "" {
		p.store = gcfs.NewOfflineLogStore(cfg.LogDir)
	}
	p.mu.Unlock()

	if p.store == nil {
		p.logger.Warn("log sweep disabled: no log directory configured")
		return nil
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("log sweep plugin initialized",
		log.Duration("interval", p.interval),
		log.Duration("max_age", p.maxAge))

	p.wg.Add(1)
	go p.sweepLoop(sweepCtx)
	return nil
}

// Shutdown stops the sweep loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) sweepLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.runImmediately {
		p.SweepOnce(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single scan and returns the number of files removed.
func (p *Plugin) SweepOnce(ctx context.Context) int {
	p.mu.RLock()
	store := p.store
	controller := p.controller
	p.mu.RUnlock()
	if store == nil {
		return 0
	}

	ids, err := store.List(ctx)
	if err != nil {
		p.logger.Error("log sweep: list failed", log.Err(err))
		return 0
	}

	registered := registeredIDs(controller)

	cutoff := p.now().Add(-p.maxAge)
	removed := 0
	var freed int64
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if registered[id] {
			continue
		}

		path := store.Path(id)
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				p.logger.Error("log sweep: stat failed", log.String("path", path), log.Err(err))
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		// The participant may have registered since the listing.
		if registeredIDs(controller)[id] {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Error("log sweep: remove failed", log.String("path", path), log.Err(err))
			continue
		}
		removed++
		freed += info.Size()
	}

	if removed > 0 {
		p.logger.Info("log sweep completed",
			log.Int("removed", removed),
			log.String("freed", formatBytes(freed)))
	}
	return removed
}

func formatBytes(b int64) string {
	const (
		_          = iota
		KB float64 = 1 << (10 * iota)
		MB
		GB
	)

	fb := float64(b)
	switch {
	case fb >= GB:
		return fmt.Sprintf("%.2fGiB", fb/GB)
	case fb >= MB:
		return fmt.Sprintf("%.2fMiB", fb/MB)
	case fb >= KB:
		return fmt.Sprintf("%.2fKiB", fb/KB)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// Ensure Plugin implements coordinator.Plugin.
var _ coordinator.Plugin = (*Plugin)(nil)

func registeredIDs(controller coordinator.Controller) map[domain.ParticipantID]bool {
	ids := make(map[domain.ParticipantID]bool)
	if controller == nil {
		return ids
	}
	for _, s := range controller.Sessions() {
		ids[domain.ParticipantID(s.ID)] = true
	}
	return ids
}

// Package configwatcher reloads the coordinator's replay threshold when its
// config file changes on disk.
package configwatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/groupcast/internal/cliconfig"
	"github.com/bft-labs/groupcast/pkg/coordinator"
	"github.com/bft-labs/groupcast/pkg/log"
)

// Plugin watches one config file and applies its threshold to the running
// coordinator.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	load          func(path string) (int64, error)

	// Runtime state
	logger     log.Logger
	controller coordinator.Controller
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer
	reloads    int
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the coordinator config file. Empty disables the plugin.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Load reads the threshold from the file.
	// Default: cliconfig.LoadThreshold
	Load func(path string) (int64, error)
}

// DefaultConfig returns a Config that watches the per-user coordinator
// config file.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath("coordinator"),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.Load == nil {
		cfg.Load = cliconfig.LoadThreshold
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		load:          cfg.Load,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory. Editors often
// replace a file instead of writing it in place, so the directory is watched
// rather than the file.
func (p *Plugin) Initialize(ctx context.Context, cfg coordinator.PluginConfig) error {
	p.mu.Lock()
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	p.controller = cfg.Coordinator
	p.mu.Unlock()

	if p.path == "" {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Reloads returns how many times a new threshold was applied.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies the file's threshold. A file that cannot be read or parsed
// leaves the current threshold in place.
func (p *Plugin) reload() {
	threshold, err := p.load(p.path)
	if err != nil {
		p.logger.Warn("config reload skipped", log.String("path", p.path), log.Err(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.controller == nil {
		p.logger.Error("config reload skipped", log.Err(errors.New("no coordinator")))
		return
	}
	if p.controller.Threshold() == threshold {
		return
	}
	p.controller.SetThreshold(threshold)
	p.reloads++
	p.logger.Info("replay threshold reloaded", log.Int64("threshold", threshold))
}

// Ensure Plugin implements coordinator.Plugin.
var _ coordinator.Plugin = (*Plugin)(nil)

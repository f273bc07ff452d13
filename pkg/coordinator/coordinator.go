package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/groupcast/internal/adapters/fs"
	"github.com/bft-labs/groupcast/internal/adapters/tcp"
	"github.com/bft-labs/groupcast/internal/app"
	"github.com/bft-labs/groupcast/internal/ports"
	"github.com/bft-labs/groupcast/pkg/log"
	"github.com/bft-labs/groupcast/pkg/participant"
)

// Coordinator is a group-communication coordinator that can be embedded in
// other applications. Use New to create an instance, then Start to accept
// control-plane connections.
type Coordinator struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    ports.Logger
	events    *eventFanout
	plugins   []Plugin
	threshold atomic.Int64

	// mu serializes Start and Stop.
	mu     sync.Mutex
	cancel context.CancelFunc

	// rt guards the per-run fields so plugins may query the coordinator
	// while Start is still in progress.
	rt   sync.RWMutex
	core *app.Coordinator
	ln   net.Listener
}

// New creates a Coordinator in StateStopped. It returns an error if the
// configuration is invalid.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	events := &eventFanout{}
	if o.eventHandler != nil {
		events.handlers = append(events.handlers, o.eventHandler)
	}
	for _, p := range o.plugins {
		if h, ok := p.(EventHandler); ok {
			events.handlers = append(events.handlers, h)
		}
	}

	c := &Coordinator{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(o.logger, events),
		logger:    o.logger,
		events:    events,
		plugins:   o.plugins,
	}
	c.threshold.Store(cfg.Threshold)
	return c, nil
}

// Start opens the offline log and state directories, restores the sessions
// saved by a previous run, initializes plugins and begins serving the
// control plane in the background.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	fail := func(reason string, err error) error {
		_ = c.lifecycle.TransitionTo(app.StateCrashed, reason)
		return err
	}

	for _, dir := range []string{c.config.LogDir, c.config.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail("create directories", fmt.Errorf("%w: %v", ErrStorage, err))
		}
	}

	ln := c.opts.listener
	c.opts.listener = nil
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", c.config.ListenAddr)
		if err != nil {
			return fail("listen failed", fmt.Errorf("listen %s: %w", c.config.ListenAddr, err))
		}
	}

	core := c.newCore()
	if err := core.Restore(ctx); err != nil {
		ln.Close()
		_ = core.Shutdown(context.Background())
		return fail("restore failed", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.lifecycle.SetCancel(cancel)
	c.rt.Lock()
	c.core = core
	c.ln = ln
	c.rt.Unlock()
	core.SetThreshold(c.threshold.Load())

	pluginCfg := PluginConfig{
		LogDir:      c.config.LogDir,
		StateDir:    c.config.StateDir,
		Logger:      c.logger,
		Coordinator: c,
	}
	for i, p := range c.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			ln.Close()
			c.shutdownPlugins(c.plugins[:i])
			_ = core.Shutdown(context.Background())
			return fail("plugin init failed: "+p.Name(), err)
		}
		c.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	c.lifecycle.Go(func() {
		if err := c.lifecycle.TransitionTo(app.StateRunning, "control plane listening"); err != nil {
			ln.Close()
			return
		}
		if err := core.Serve(runCtx, ln); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("control plane stopped", ports.Err(err))
			_ = c.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})
	return nil
}

func (c *Coordinator) newCore() *app.Coordinator {
	var repo ports.RegistryRepository
	if !c.config.DisablePersistence {
		repo = fs.NewRegistryFileRepository(c.config.StateDir)
	}
	pusher := c.opts.pusher
	if pusher == nil {
		pusher = tcp.NewPusher(c.config.PushTimeout, c.logger)
	}
	return app.NewCoordinator(app.CoordinatorConfig{
		Capacity:    c.config.Capacity,
		Threshold:   c.threshold.Load(),
		ReadTimeout: c.config.ReadTimeout,
		Store:       fs.NewOfflineLogStore(c.config.LogDir),
		Repository:  repo,
		Pusher:      pusher,
		Clock:       c.opts.clock,
		Logger:      c.logger,
		Emitter:     c.events,
	})
}

// Stop closes the control plane, stops every session worker and saves the
// registry. Offline logs are kept for the next Start. It waits up to
// 30 seconds and returns ErrShutdownTimeout if workers are still busy.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.lifecycle.CanStop() {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	core := c.runtime()

	err := c.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if core != nil {
		if serr := core.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrShutdownTimeout, serr)
		}
	}
	c.shutdownPlugins(c.plugins)

	if err != nil {
		_ = c.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = c.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// shutdownPlugins stops plugins in reverse order.
func (c *Coordinator) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			continue
		}
		c.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
	}
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (c *Coordinator) Status() State {
	return convertState(c.lifecycle.State())
}

// Addr returns the control-plane address, or nil before the first Start.
func (c *Coordinator) Addr() net.Addr {
	c.rt.RLock()
	defer c.rt.RUnlock()
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Threshold returns the replay window in seconds.
func (c *Coordinator) Threshold() int64 {
	return c.threshold.Load()
}

// SetThreshold changes the replay window. Reconnects processed after the
// call use the new value.
func (c *Coordinator) SetThreshold(seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	c.threshold.Store(seconds)

	if core := c.runtime(); core != nil {
		core.SetThreshold(seconds)
	}
}

// Sessions returns the registered participants ordered by id.
func (c *Coordinator) Sessions() []Session {
	core := c.runtime()
	if core == nil {
		return nil
	}

	infos := core.Registry().Infos()
	out := make([]Session, len(infos))
	for i, info := range infos {
		out[i] = convertSession(info)
	}
	return out
}

func (c *Coordinator) runtime() *app.Coordinator {
	c.rt.RLock()
	defer c.rt.RUnlock()
	return c.core
}

var _ Controller = (*Coordinator)(nil)

// validateModuleVersions checks that the sub-modules this package is built
// against are compatible with each other.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"log":         {log.Version, log.MinCompatibleVersion},
		"participant": {participant.Version, participant.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion for
// "major.minor.patch" strings.
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}

package app

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
)

// CoordinatorConfig wires a Coordinator.
type CoordinatorConfig struct {
	Capacity    int
	Threshold   int64
	ReadTimeout time.Duration

	Store ports.OfflineStore
	// Repository persists the registry between runs. Optional.
	Repository ports.RegistryRepository
	Pusher     ports.Pusher
	Clock      ports.Clock
	Logger     ports.Logger
	Emitter    EventEmitter
}

// Coordinator owns the registry and the control plane for one run.
type Coordinator struct {
	threshold  atomic.Int64
	registry   *Registry
	dispatcher *Dispatcher
	repo       ports.RegistryRepository
	logger     ports.Logger

	persistMu sync.Mutex
}

// NewCoordinator builds the registry and dispatcher from cfg.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
	c.threshold.Store(cfg.Threshold)

	var next EventEmitter = noopEmitter{}
	if cfg.Emitter != nil {
		next = cfg.Emitter
	}
	emitter := &persistingEmitter{EventEmitter: next, persist: c.persist}

	c.registry = NewRegistry(RegistryConfig{
		Capacity:  cfg.Capacity,
		Store:     cfg.Store,
		Pusher:    cfg.Pusher,
		Threshold: &c.threshold,
		Logger:    cfg.Logger,
		Emitter:   emitter,
	})
	c.dispatcher = NewDispatcher(DispatcherConfig{
		Registry:    c.registry,
		Clock:       cfg.Clock,
		Logger:      cfg.Logger,
		Emitter:     emitter,
		ReadTimeout: cfg.ReadTimeout,
	})
	return c
}

// Registry returns the session registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Dispatcher returns the control plane.
func (c *Coordinator) Dispatcher() *Dispatcher { return c.dispatcher }

// Threshold returns the replay threshold in seconds.
func (c *Coordinator) Threshold() int64 { return c.threshold.Load() }

// SetThreshold changes the replay threshold. Reconnects processed after the
// call use the new value.
func (c *Coordinator) SetThreshold(seconds int64) {
	old := c.threshold.Swap(seconds)
	if old != seconds {
		c.logger.Info("replay threshold changed",
			ports.Int64("from", old),
			ports.Int64("to", seconds),
		)
	}
}

// Restore reloads sessions saved by a previous run.
func (c *Coordinator) Restore(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	records, err := c.repo.Load(ctx)
	if err != nil {
		return err
	}
	n, err := c.registry.Restore(ctx, records)
	if n > 0 {
		c.logger.Info("restored sessions", ports.Int("count", n))
	}
	return err
}

// Serve runs the control plane on ln until ctx is cancelled.
func (c *Coordinator) Serve(ctx context.Context, ln net.Listener) error {
	c.logger.Info("control plane listening",
		ports.String("addr", ln.Addr().String()),
		ports.Int("capacity", c.registry.Capacity()),
		ports.Int64("threshold", c.Threshold()),
	)
	return c.dispatcher.Serve(ctx, ln)
}

// Shutdown stops every session worker and saves the registry. Offline logs
// are kept.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	err := c.registry.StopAll(ctx)
	c.persist()
	return err
}

func (c *Coordinator) persist() {
	if c.repo == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if err := c.repo.Save(context.Background(), c.registry.Records()); err != nil {
		c.logger.Error("failed to save registry", ports.Err(err))
	}
}

// persistingEmitter saves the registry whenever its contents may have
// changed, then forwards the event.
type persistingEmitter struct {
	EventEmitter
	persist func()
}

func (e *persistingEmitter) OnSessionStateChange(id domain.ParticipantID, previous, current domain.SessionState) {
	e.persist()
	e.EventEmitter.OnSessionStateChange(id, previous, current)
}

func (e *persistingEmitter) OnCommand(kind domain.CommandKind, id domain.ParticipantID, ack string, err error) {
	e.persist()
	e.EventEmitter.OnCommand(kind, id, ack, err)
}

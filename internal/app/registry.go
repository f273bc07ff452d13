package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
)

// RegistryConfig wires a Registry.
type RegistryConfig struct {
	// Capacity is the number of live sessions admitted at once.
	// Zero means domain.MaxSessions.
	Capacity  int
	Store     ports.OfflineStore
	Pusher    ports.Pusher
	Threshold *atomic.Int64
	Logger    ports.Logger
	Emitter   SessionEventEmitter
}

// Registry maps participant ids to live sessions.
//
// The dispatcher is the only caller of the mutating methods; the lock lets
// status readers on other goroutines observe a consistent view.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ParticipantID]*Session

	capacity int
	store    ports.OfflineStore
	deps     sessionDeps
	logger   ports.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Capacity <= 0 {
		cfg.Capacity = domain.MaxSessions
	}
	if cfg.Threshold == nil {
		cfg.Threshold = new(atomic.Int64)
	}
	if cfg.Emitter == nil {
		cfg.Emitter = noopEmitter{}
	}
	return &Registry{
		sessions: make(map[domain.ParticipantID]*Session),
		capacity: cfg.Capacity,
		store:    cfg.Store,
		deps: sessionDeps{
			pusher:    cfg.Pusher,
			threshold: cfg.Threshold,
			logger:    cfg.Logger,
			emitter:   cfg.Emitter,
		},
		logger: cfg.Logger,
	}
}

// Capacity returns the admission limit.
func (r *Registry) Capacity() int { return r.capacity }

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Full reports whether a further registration would be rejected.
func (r *Registry) Full() bool {
	return r.Len() >= r.capacity
}

// Register admits id with an Online session listening on endpoint.
// Its offline log starts empty; content left by an earlier registration of
// the same id is discarded.
func (r *Registry) Register(ctx context.Context, id domain.ParticipantID, endpoint domain.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		return fmt.Errorf("%w: participant %s", domain.ErrDuplicateParticipant, id)
	}
	if len(r.sessions) >= r.capacity {
		return fmt.Errorf("%w: %d sessions", domain.ErrCapacityExceeded, len(r.sessions))
	}

	log, err := r.store.Open(ctx, id)
	if err != nil {
		return fmt.Errorf("open offline log for participant %s: %w", id, err)
	}
	if err := log.Truncate(ctx); err != nil {
		return fmt.Errorf("reset offline log for participant %s: %w", id, err)
	}

	s := newSession(id, endpoint, log, r.deps)
	r.sessions[id] = s
	s.start()
	return nil
}

// Restore recreates sessions from persisted records. Records that are
// terminal, duplicated or beyond capacity are skipped. It returns the number
// of sessions restored.
func (r *Registry) Restore(ctx context.Context, records []ports.SessionRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, rec := range records {
		state, ok := domain.ParseSessionState(rec.State)
		if !ok || state.Terminal() {
			r.logger.Warn("skipping persisted session",
				ports.Int32("participant_id", int32(rec.ID)),
				ports.String("state", rec.State),
			)
			continue
		}
		if _, dup := r.sessions[rec.ID]; dup || len(r.sessions) >= r.capacity {
			r.logger.Warn("skipping persisted session",
				ports.Int32("participant_id", int32(rec.ID)),
				ports.Bool("duplicate", dup),
			)
			continue
		}

		log, err := r.store.Open(ctx, rec.ID)
		if err != nil {
			return restored, fmt.Errorf("open offline log for participant %s: %w", rec.ID, err)
		}
		s := restoreSession(rec, state, log, r.deps)
		r.sessions[rec.ID] = s
		s.start()
		restored++
	}
	return restored, nil
}

// Lookup returns the live session for id.
func (r *Registry) Lookup(id domain.ParticipantID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: participant %s", domain.ErrUnknownParticipant, id)
	}
	return s, nil
}

// Deregister removes id and waits for its worker to delete the offline log.
func (r *Registry) Deregister(ctx context.Context, id domain.ParticipantID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: participant %s", domain.ErrUnknownParticipant, id)
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	return s.Deregister(ctx)
}

// Snapshot returns the live sessions ordered by id.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Infos returns a view of every live session ordered by id.
func (r *Registry) Infos() []SessionInfo {
	sessions := r.Snapshot()
	out := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		out[i] = s.Info()
	}
	return out
}

// Records returns the persisted form of every live session.
func (r *Registry) Records() []ports.SessionRecord {
	infos := r.Infos()
	out := make([]ports.SessionRecord, len(infos))
	for i, info := range infos {
		out[i] = info.Record()
	}
	return out
}

// Prune drops sessions whose worker stopped on a storage failure.
// Their log files stay on disk.
func (r *Registry) Prune() []domain.ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned []domain.ParticipantID
	for id, s := range r.sessions {
		if s.State() != domain.StateFailed {
			continue
		}
		delete(r.sessions, id)
		pruned = append(pruned, id)
		r.logger.Warn("pruned failed session",
			ports.Int32("participant_id", int32(id)),
			ports.Err(s.Err()),
		)
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i] < pruned[j] })
	return pruned
}

// StopAll stops every session worker concurrently, leaving logs and states
// in place for persistence.
func (r *Registry) StopAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.Snapshot() {
		g.Go(func() error {
			return s.Stop(gctx)
		})
	}
	return g.Wait()
}

// Known reports whether id has a live session.
func (r *Registry) Known(id domain.ParticipantID) bool {
	_, err := r.Lookup(id)
	return err == nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
	"github.com/bft-labs/groupcast/internal/replay"
)

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID             domain.ParticipantID
	Endpoint       domain.Endpoint
	State          domain.SessionState
	DisconnectedAt int64
	ReconnectedAt  int64
	Pending        int
}

// Record converts the view to its persisted form.
func (i SessionInfo) Record() ports.SessionRecord {
	return ports.SessionRecord{
		ID:             i.ID,
		Endpoint:       i.Endpoint,
		State:          i.State.String(),
		DisconnectedAt: i.DisconnectedAt,
		ReconnectedAt:  i.ReconnectedAt,
	}
}

// sessionDeps are shared by every session of a registry.
type sessionDeps struct {
	pusher    ports.Pusher
	threshold *atomic.Int64
	logger    ports.Logger
	emitter   SessionEventEmitter
}

// Session is the actor owning one participant's state and offline log.
// Every mutation happens on its worker goroutine, one event at a time;
// other goroutines only enqueue events or read Info.
type Session struct {
	id     domain.ParticipantID
	log    ports.OfflineLog
	deps   sessionDeps
	logger ports.Logger

	mailbox *mailbox
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	deregistering atomic.Bool
	removeErr     error

	mu             sync.RWMutex
	endpoint       domain.Endpoint
	state          domain.SessionState
	disconnectedAt int64
	reconnectedAt  int64
	err            error
}

func newSession(id domain.ParticipantID, endpoint domain.Endpoint, log ports.OfflineLog, deps sessionDeps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		log:      log,
		deps:     deps,
		logger:   deps.logger,
		mailbox:  newMailbox(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		endpoint: endpoint,
		state:    domain.StateOnline,
	}
}

// restoreSession rebuilds a session from a persisted record.
func restoreSession(rec ports.SessionRecord, state domain.SessionState, log ports.OfflineLog, deps sessionDeps) *Session {
	s := newSession(rec.ID, rec.Endpoint, log, deps)
	s.state = state
	s.disconnectedAt = rec.DisconnectedAt
	s.reconnectedAt = rec.ReconnectedAt
	return s
}

func (s *Session) start() {
	go s.run()
}

// ID returns the participant id.
func (s *Session) ID() domain.ParticipantID { return s.id }

// Info returns a snapshot of the session's fields.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionInfo{
		ID:             s.id,
		Endpoint:       s.endpoint,
		State:          s.state,
		DisconnectedAt: s.disconnectedAt,
		ReconnectedAt:  s.reconnectedAt,
		Pending:        s.mailbox.len(),
	}
}

// State returns the current session state.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that stopped a Failed session.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed when the worker has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Deliver enqueues a message for live push or offline buffering.
func (s *Session) Deliver(messageID, message string, at time.Time) error {
	return s.enqueue(deliverEvent{messageID: messageID, message: message, at: at})
}

// Disconnect enqueues a transition to Offline stamped at.
func (s *Session) Disconnect(at time.Time) error {
	return s.enqueue(disconnectEvent{at: at})
}

// Reconnect enqueues a replay to endpoint followed by a transition to Online.
func (s *Session) Reconnect(endpoint domain.Endpoint, at time.Time) error {
	return s.enqueue(reconnectEvent{endpoint: endpoint, at: at})
}

// Sync waits until every event enqueued before the call has been applied.
func (s *Session) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.enqueue(barrierEvent{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.done:
		select {
		case <-done:
			return nil
		default:
		}
		return fmt.Errorf("%w: participant %s", domain.ErrSessionClosed, s.id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) enqueue(ev event) error {
	if !s.mailbox.put(ev) {
		return fmt.Errorf("%w: participant %s", domain.ErrSessionClosed, s.id)
	}
	return nil
}

// Deregister terminates the session. Queued events are discarded, an
// in-flight push is aborted and the offline log is deleted. It returns once
// the worker has exited or ctx is done.
func (s *Session) Deregister(ctx context.Context) error {
	s.deregistering.Store(true)
	s.cancel()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// A worker that failed before the signal left its log behind.
	if s.State() == domain.StateFailed {
		if err := s.log.Remove(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		s.state = domain.StateDeregistered
		s.mu.Unlock()
		s.deps.emitter.OnSessionStateChange(s.id, domain.StateFailed, domain.StateDeregistered)
		return nil
	}
	return s.removeErr
}

// Stop terminates the worker without touching the log or the state, so the
// session can be restored later.
func (s *Session) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			s.terminate()
			return
		case <-s.mailbox.ready:
		}

		for s.ctx.Err() == nil {
			ev, ok := s.mailbox.take()
			if !ok {
				break
			}
			if err := s.apply(ev); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

func (s *Session) apply(ev event) error {
	switch ev := ev.(type) {
	case deliverEvent:
		return s.deliver(ev)
	case disconnectEvent:
		s.disconnect(ev)
		return nil
	case reconnectEvent:
		return s.reconnect(ev)
	case barrierEvent:
		close(ev.done)
		return nil
	default:
		s.logger.Warn("session ignoring unknown event",
			ports.Int32("participant_id", int32(s.id)),
			ports.String("event", ev.eventName()),
		)
		return nil
	}
}

func (s *Session) deliver(ev deliverEvent) error {
	s.mu.RLock()
	state, endpoint := s.state, s.endpoint
	s.mu.RUnlock()

	if state == domain.StateOffline {
		entry := domain.LogEntry{Message: ev.message, ArrivedAt: ev.at.Unix()}
		if err := s.log.Append(s.ctx, entry); err != nil {
			return err
		}
		s.deps.emitter.OnBuffered(s.id)
		s.logger.Debug("message buffered",
			ports.Int32("participant_id", int32(s.id)),
			ports.String("msg_id", ev.messageID),
		)
		return nil
	}

	// Online delivery is best effort. Failures are not written to the log.
	s.push(endpoint, ev.message, ports.String("msg_id", ev.messageID))
	return nil
}

func (s *Session) disconnect(ev disconnectEvent) {
	s.mu.Lock()
	if s.state != domain.StateOnline {
		s.mu.Unlock()
		return
	}
	s.disconnectedAt = ev.at.Unix()
	s.mu.Unlock()

	s.setState(domain.StateOffline)
}

func (s *Session) reconnect(ev reconnectEvent) error {
	s.mu.Lock()
	s.endpoint = ev.endpoint
	s.reconnectedAt = ev.at.Unix()
	disconnectedAt, reconnectedAt := s.disconnectedAt, s.reconnectedAt
	s.mu.Unlock()

	entries, err := s.log.ReadAll(s.ctx)
	if err != nil {
		return err
	}

	threshold := s.deps.threshold.Load()
	messages, ok := replay.Select(entries, disconnectedAt, reconnectedAt, threshold)
	s.push(ev.endpoint, replay.Payload(messages, ok), ports.Bool("replay", true))

	if err := s.log.Truncate(s.ctx); err != nil {
		return err
	}

	s.deps.emitter.OnReplay(s.id, len(entries), len(messages), !ok)
	s.logger.Info("offline messages replayed",
		ports.Int32("participant_id", int32(s.id)),
		ports.Int("buffered", len(entries)),
		ports.Int("replayed", len(messages)),
		ports.Int64("threshold", threshold),
	)

	s.setState(domain.StateOnline)
	return nil
}

func (s *Session) push(endpoint domain.Endpoint, payload string, fields ...ports.Field) {
	start := time.Now()
	err := s.deps.pusher.Push(s.ctx, endpoint, payload)
	if err != nil {
		s.deps.emitter.OnDeliveryError(s.id, err)
		s.logger.Warn("push failed, message dropped", append(fields,
			ports.Int32("participant_id", int32(s.id)),
			ports.String("endpoint", endpoint.String()),
			ports.Err(err),
		)...)
		return
	}
	s.deps.emitter.OnDelivery(s.id, len(payload), time.Since(start))
}

// terminate runs on the worker after cancellation.
func (s *Session) terminate() {
	dropped := s.mailbox.close()
	if !s.deregistering.Load() {
		return
	}

	if err := s.log.Remove(context.WithoutCancel(s.ctx)); err != nil {
		s.removeErr = err
		s.logger.Error("failed to remove offline log",
			ports.Int32("participant_id", int32(s.id)),
			ports.Err(err),
		)
	}
	s.setState(domain.StateDeregistered)
	s.logger.Debug("session terminated",
		ports.Int32("participant_id", int32(s.id)),
		ports.Int("discarded_events", dropped),
	)
}

func (s *Session) fail(err error) {
	// A cancellation racing a storage call is a shutdown, not a failure.
	if errors.Is(err, context.Canceled) {
		s.terminate()
		return
	}

	s.mailbox.close()
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.setState(domain.StateFailed)
	s.logger.Error("offline log failure, session stopped",
		ports.Int32("participant_id", int32(s.id)),
		ports.Err(err),
	)
}

func (s *Session) setState(next domain.SessionState) {
	s.mu.Lock()
	prev := s.state
	if prev == next || !prev.CanTransitionTo(next) {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	s.deps.emitter.OnSessionStateChange(s.id, prev, next)
}

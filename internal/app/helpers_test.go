package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/internal/adapters/fs"
	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
	"github.com/bft-labs/groupcast/pkg/log"
)

// manualClock returns whatever time the test last set.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(sec int64) *manualClock {
	return &manualClock{now: time.Unix(sec, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(sec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(sec, 0)
}

type pushed struct {
	Endpoint domain.Endpoint
	Payload  string
}

// recordingPusher keeps every push in memory. Ports listed in failPorts
// fail; a non-nil gate blocks pushes until it is closed or ctx ends.
type recordingPusher struct {
	mu        sync.Mutex
	pushes    []pushed
	failPorts map[int32]bool
	gate      chan struct{}
	attempts  atomic.Int64
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{failPorts: make(map[int32]bool)}
}

func (p *recordingPusher) Push(ctx context.Context, endpoint domain.Endpoint, payload string) error {
	p.attempts.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPorts[endpoint.Port] {
		return domain.ErrDeliveryFailed
	}
	p.pushes = append(p.pushes, pushed{Endpoint: endpoint, Payload: payload})
	return nil
}

func (p *recordingPusher) Pushes() []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushed(nil), p.pushes...)
}

func (p *recordingPusher) PayloadsTo(port int32) []string {
	var out []string
	for _, ps := range p.Pushes() {
		if ps.Endpoint.Port == port {
			out = append(out, ps.Payload)
		}
	}
	return out
}

// brokenStore hands out logs whose appends fail.
type brokenStore struct {
	ports.OfflineStore
}

func (s brokenStore) Open(ctx context.Context, id domain.ParticipantID) (ports.OfflineLog, error) {
	l, err := s.OfflineStore.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return brokenLog{l}, nil
}

type brokenLog struct {
	ports.OfflineLog
}

func (brokenLog) Append(context.Context, domain.LogEntry) error {
	return errors.Join(domain.ErrStorage, errors.New("disk full"))
}

type testEnv struct {
	dir      string
	store    *fs.OfflineLogStore
	pusher   *recordingPusher
	clock    *manualClock
	registry *Registry
	disp     *Dispatcher
}

func newTestEnv(t *testing.T, threshold int64) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, threshold, nil)
}

func newTestEnvWithStore(t *testing.T, threshold int64, wrap func(ports.OfflineStore) ports.OfflineStore) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		store:  fs.NewOfflineLogStore(dir),
		pusher: newRecordingPusher(),
		clock:  newManualClock(0),
	}
	var store ports.OfflineStore = env.store
	if wrap != nil {
		store = wrap(store)
	}

	th := new(atomic.Int64)
	th.Store(threshold)
	env.registry = NewRegistry(RegistryConfig{
		Store:     store,
		Pusher:    env.pusher,
		Threshold: th,
		Logger:    log.NewNoopLogger(),
	})
	env.disp = NewDispatcher(DispatcherConfig{
		Registry: env.registry,
		Clock:    env.clock,
		Logger:   log.NewNoopLogger(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.registry.StopAll(ctx)
	})
	return env
}

func endpoint(port int32) domain.Endpoint {
	return domain.Endpoint{Address: "127.0.0.1", Port: port}
}

// exec runs cmd at the given second.
func (e *testEnv) exec(t *testing.T, sec int64, cmd domain.Command) error {
	t.Helper()
	e.clock.Set(sec)
	return e.disp.Execute(context.Background(), cmd)
}

func (e *testEnv) register(t *testing.T, id domain.ParticipantID, port int32) {
	t.Helper()
	require.NoError(t, e.exec(t, 0, domain.Command{Kind: domain.CommandRegister, ID: id, Endpoint: endpoint(port)}))
}

// settle waits until every session has drained its mailbox and finished
// the event in progress.
func (e *testEnv) settle(t *testing.T) {
	t.Helper()
	for _, s := range e.registry.Snapshot() {
		waitIdle(t, s)
	}
}

func waitIdle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Sync(ctx)
	if err != nil && !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("session %s did not settle: %v", s.ID(), err)
	}
}

func (e *testEnv) logEntries(t *testing.T, id domain.ParticipantID) []domain.LogEntry {
	t.Helper()
	l, err := e.store.Open(context.Background(), id)
	require.NoError(t, err)
	entries, err := l.ReadAll(context.Background())
	require.NoError(t, err)
	return entries
}

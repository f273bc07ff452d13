package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
)

// ShutdownTimeout bounds how long Stop waits for the control plane and the
// session workers to finish.
const ShutdownTimeout = 30 * time.Second

// State is the lifecycle state of a coordinator instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = map[State]string{
	StateStopped:  "Stopped",
	StateStarting: "Starting",
	StateRunning:  "Running",
	StateStopping: "Stopping",
	StateCrashed:  "Crashed",
}

// String returns a human-readable representation of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// transitions lists the states reachable from each state. The error is
// returned when a caller asks for anything else.
var transitions = map[State]struct {
	next []State
	err  error
}{
	StateStopped:  {next: []State{StateStarting}, err: domain.ErrNotRunning},
	StateStarting: {next: []State{StateRunning, StateStopping, StateCrashed}, err: domain.ErrAlreadyRunning},
	StateRunning:  {next: []State{StateStopping, StateCrashed}, err: domain.ErrAlreadyRunning},
	StateStopping: {next: []State{StateStopped, StateCrashed}, err: domain.ErrAlreadyRunning},
	StateCrashed:  {next: []State{StateStarting}, err: domain.ErrNotRunning},
}

// LifecycleObserver is notified after every lifecycle transition.
type LifecycleObserver interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle guards Start/Stop of a coordinator and tracks its background
// goroutines.
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   ports.Logger
	observer LifecycleObserver
}

// NewLifecycle creates a lifecycle in the Stopped state.
func NewLifecycle(logger ports.Logger, observer LifecycleObserver) *Lifecycle {
	return &Lifecycle{
		state:    StateStopped,
		logger:   logger,
		observer: observer,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to newState, or returns an error if that transition
// is not allowed from the current state.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	rule := transitions[oldState]
	allowed := false
	for _, s := range rule.next {
		if s == newState {
			allowed = true
			break
		}
	}
	if !allowed {
		l.mu.Unlock()
		return rule.err
	}
	l.state = newState
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("coordinator state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

// CanStart reports whether Start may be called.
func (l *Lifecycle) CanStart() bool {
	s := l.State()
	return s == StateStopped || s == StateCrashed
}

// CanStop reports whether Stop may be called.
func (l *Lifecycle) CanStop() bool {
	s := l.State()
	return s == StateRunning || s == StateStarting
}

// SetCancel stores the function that cancels the run context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel cancels the run context, if any.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn on a tracked goroutine.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// WaitWithTimeout waits for tracked goroutines, returning
// ErrShutdownTimeout if they are still running after timeout.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		l.logger.Warn("shutdown timeout, abandoning workers",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}

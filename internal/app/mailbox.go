package app

import (
	"sync"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
)

// event is one unit of work for a session worker.
type event interface {
	eventName() string
}

type deliverEvent struct {
	messageID string
	message   string
	at        time.Time
}

type disconnectEvent struct {
	at time.Time
}

type reconnectEvent struct {
	endpoint domain.Endpoint
	at       time.Time
}

// barrierEvent is closed by the worker once it is reached.
type barrierEvent struct {
	done chan struct{}
}

func (deliverEvent) eventName() string    { return "deliver" }
func (disconnectEvent) eventName() string { return "disconnect" }
func (reconnectEvent) eventName() string  { return "reconnect" }
func (barrierEvent) eventName() string    { return "barrier" }

// mailbox is an unbounded FIFO. Producers never block, so the control plane
// is not held up by a slow session.
type mailbox struct {
	mu     sync.Mutex
	queue  []event
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// put enqueues ev. It returns false once the mailbox is closed.
func (m *mailbox) put(ev event) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, ev)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// take dequeues the oldest event.
func (m *mailbox) take() (event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	ev := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return ev, true
}

// close rejects further puts and discards queued events.
// It returns the number of events dropped.
func (m *mailbox) close() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := len(m.queue)
	m.closed = true
	m.queue = nil
	return dropped
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

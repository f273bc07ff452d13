package participant

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/bft-labs/groupcast/internal/replay"
	"github.com/bft-labs/groupcast/internal/wire"
	"github.com/bft-labs/groupcast/pkg/log"
)

// Delivery is one payload pushed by the coordinator.
type Delivery struct {
	// Messages holds the received texts in order. Empty for a replay that
	// carried the "no messages" notice.
	Messages []string
	// Replay is true for the first payload after a reconnect.
	Replay bool
	// Raw is the payload as received.
	Raw string
}

// ParseReplay splits a replay payload into messages. ok is false when the
// payload is the "no messages received" notice.
func ParseReplay(payload string) (messages []string, ok bool) {
	return replay.Split(payload)
}

// Listener accepts pushes from the coordinator on one port.
type Listener struct {
	ln           net.Listener
	expectReplay atomic.Bool
	handler      func(Delivery)
	readTimeout  time.Duration
	logger       log.Logger
	closed       atomic.Bool
}

// Listen opens a push listener on addr. When replay is true the first
// payload received is parsed as a reconnect replay.
func Listen(addr string, replay bool, handler func(Delivery), logger log.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	l := &Listener{
		ln:          ln,
		handler:     handler,
		readTimeout: 10 * time.Second,
		logger:      logger,
	}
	l.expectReplay.Store(replay)
	return l, nil
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve handles pushes until ctx is cancelled or Close is called.
// Pushes are handled one at a time, in arrival order.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))

	payload, err := wire.ReadUTF(conn)
	if err != nil {
		l.logger.Warn("failed to read push", log.Err(err))
		return
	}

	d := Delivery{Raw: payload}
	if l.expectReplay.CompareAndSwap(true, false) {
		d.Replay = true
		d.Messages, _ = ParseReplay(payload)
	} else {
		d.Messages = []string{payload}
	}
	if l.handler != nil {
		l.handler(d)
	}
}

// Close stops accepting pushes. A push already being read still completes.
func (l *Listener) Close() error {
	l.closed.Store(true)
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

package participant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bft-labs/groupcast/pkg/log"
)

var (
	// ErrAlreadyRegistered is returned by Register while registered.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrNotRegistered is returned by every command except Register while
	// unregistered.
	ErrNotRegistered = errors.New("not registered")
	// ErrAlreadyConnected is returned by Reconnect while connected.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrDisconnected is returned by Disconnect and Msend until Reconnect.
	ErrDisconnected = errors.New("cannot input other commands until reconnected")
)

// Status is the participant's view of its own membership.
type Status int

const (
	StatusUnregistered Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusUnregistered:
		return "unregistered"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Config configures a Participant.
type Config struct {
	ID int32
	// Coordinator is the coordinator's control-plane address.
	Coordinator string
	// AdvertiseAddress is the host the coordinator dials for pushes and
	// the host the push listener binds to.
	AdvertiseAddress string
	// InboxPath is the file received messages are appended to.
	InboxPath   string
	DialTimeout time.Duration
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.AdvertiseAddress == "" {
		c.AdvertiseAddress = "127.0.0.1"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.InboxPath == "" {
		c.InboxPath = fmt.Sprintf("participant%d.log", c.ID)
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.ID < 0 {
		return fmt.Errorf("participant id must be non-negative, got %d", c.ID)
	}
	if c.Coordinator == "" {
		return errors.New("coordinator address is required")
	}
	if _, _, err := net.SplitHostPort(c.Coordinator); err != nil {
		return fmt.Errorf("invalid coordinator address %q: %w", c.Coordinator, err)
	}
	return nil
}

// Option configures a Participant.
type Option func(*Participant)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Participant) { p.logger = logger }
}

// WithOnDelivery registers a callback run for every push after it is
// recorded in the inbox.
func WithOnDelivery(fn func(Delivery)) Option {
	return func(p *Participant) { p.onDelivery = fn }
}

// Participant enforces the command ordering of the interactive client:
// Register only while unregistered, Reconnect and Deregister only while
// disconnected or connected, Disconnect and Msend only while connected.
// It owns the push listener for the current connection.
type Participant struct {
	cfg        Config
	client     *Client
	inbox      *Inbox
	logger     log.Logger
	onDelivery func(Delivery)

	mu       sync.Mutex
	status   Status
	listener *Listener
	cancel   context.CancelFunc
}

// New validates cfg and opens the inbox.
func New(cfg Config, opts ...Option) (*Participant, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	inbox, err := OpenInbox(cfg.InboxPath)
	if err != nil {
		return nil, err
	}
	p := &Participant{
		cfg:    cfg,
		client: NewClient(cfg.Coordinator, cfg.ID, cfg.AdvertiseAddress, cfg.DialTimeout),
		inbox:  inbox,
		logger: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Status returns the current membership status.
func (p *Participant) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Inbox returns the local message log.
func (p *Participant) Inbox() *Inbox { return p.inbox }

// ListenAddr returns the push listener's address, or nil while no listener
// is open.
func (p *Participant) ListenAddr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Register opens a push listener on port and joins the group. Port 0 picks
// a free port.
func (p *Participant) Register(ctx context.Context, port int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusUnregistered {
		return "", ErrAlreadyRegistered
	}

	bound, err := p.listen(port, false)
	if err != nil {
		return "", err
	}
	ack, err := p.client.Register(ctx, bound)
	if err != nil {
		p.closeListener()
		return "", err
	}
	p.status = StatusConnected
	return ack, nil
}

// Deregister leaves the group and closes the push listener.
func (p *Participant) Deregister(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusUnregistered {
		return "", ErrNotRegistered
	}

	ack, err := p.client.Deregister(ctx)
	if err != nil {
		return "", err
	}
	p.closeListener()
	p.status = StatusUnregistered
	return ack, nil
}

// Disconnect asks the coordinator to buffer and closes the push listener.
func (p *Participant) Disconnect(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case StatusUnregistered:
		return "", ErrNotRegistered
	case StatusDisconnected:
		return "", ErrDisconnected
	}

	ack, err := p.client.Disconnect(ctx)
	if err != nil {
		return "", err
	}
	p.closeListener()
	p.status = StatusDisconnected
	return ack, nil
}

// Reconnect opens a push listener on port that expects the replay payload
// first, then resumes delivery.
func (p *Participant) Reconnect(ctx context.Context, port int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case StatusUnregistered:
		return "", ErrNotRegistered
	case StatusConnected:
		return "", ErrAlreadyConnected
	}

	bound, err := p.listen(port, true)
	if err != nil {
		return "", err
	}
	ack, err := p.client.Reconnect(ctx, bound)
	if err != nil {
		p.closeListener()
		return "", err
	}
	p.status = StatusConnected
	return ack, nil
}

// Msend multicasts message to the group.
func (p *Participant) Msend(ctx context.Context, message string) (string, error) {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()
	switch status {
	case StatusUnregistered:
		return "", ErrNotRegistered
	case StatusDisconnected:
		return "", ErrDisconnected
	}
	return p.client.Msend(ctx, message)
}

// Close shuts the push listener without notifying the coordinator.
func (p *Participant) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeListener()
	return nil
}

// listen must be called with p.mu held.
func (p *Participant) listen(port int, replay bool) (int, error) {
	addr := net.JoinHostPort(p.cfg.AdvertiseAddress, strconv.Itoa(port))
	l, err := Listen(addr, replay, p.deliver, p.logger)
	if err != nil {
		return 0, fmt.Errorf("listen on %s: %w", addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := l.Serve(ctx); err != nil {
			p.logger.Error("push listener stopped", log.Err(err))
		}
	}()
	p.listener = l
	p.cancel = cancel
	return l.Addr().(*net.TCPAddr).Port, nil
}

// closeListener must be called with p.mu held.
func (p *Participant) closeListener() {
	if p.listener == nil {
		return
	}
	p.cancel()
	_ = p.listener.Close()
	p.listener = nil
	p.cancel = nil
}

func (p *Participant) deliver(d Delivery) {
	if err := p.inbox.Append(d.Messages...); err != nil {
		p.logger.Error("failed to record message", log.Err(err))
	}
	if p.onDelivery != nil {
		p.onDelivery(d)
	}
}

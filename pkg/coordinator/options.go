package coordinator

import (
	"net"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
	"github.com/bft-labs/groupcast/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField is a structured log field.
type LogField = log.Field

// Endpoint is the address a participant listens on for pushed messages.
type Endpoint = domain.Endpoint

// Pusher delivers one payload to a participant. The default dials TCP and
// writes a length-prefixed string.
type Pusher = ports.Pusher

// Clock supplies the current time used to stamp messages and reconnects.
type Clock = ports.Clock

// Option configures optional behavior of a Coordinator.
type Option func(*options)

type options struct {
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	pusher       Pusher
	clock        Clock
	listener     net.Listener
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clock:  ports.SystemClock{},
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for coordinator events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the coordinator starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithPusher replaces the TCP pusher, mainly for tests.
func WithPusher(p Pusher) Option {
	return func(o *options) {
		o.pusher = p
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithListener serves the control plane on ln instead of listening on
// Config.ListenAddr. The coordinator closes ln on Stop, so it is used for
// the first Start only; later Starts listen on Config.ListenAddr.
func WithListener(ln net.Listener) Option {
	return func(o *options) {
		o.listener = ln
	}
}

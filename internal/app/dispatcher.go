package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
	"github.com/bft-labs/groupcast/internal/wire"
)

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Clock    ports.Clock
	Logger   ports.Logger
	Emitter  CommandEventEmitter
	// ReadTimeout bounds how long a control connection may take to deliver
	// its request. Zero disables the deadline.
	ReadTimeout time.Duration
}

// Dispatcher is the control plane. It serves one connection at a time:
// read one request, acknowledge, close, then execute. It is the only
// goroutine that mutates the registry.
type Dispatcher struct {
	registry    *Registry
	clock       ports.Clock
	logger      ports.Logger
	emitter     CommandEventEmitter
	readTimeout time.Duration
}

// NewDispatcher creates a dispatcher over cfg.Registry.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Emitter == nil {
		cfg.Emitter = noopEmitter{}
	}
	return &Dispatcher{
		registry:    cfg.Registry,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		emitter:     cfg.Emitter,
		readTimeout: cfg.ReadTimeout,
	}
}

// Serve accepts control connections on ln until ctx is cancelled or ln is
// closed. A failing connection never stops the loop.
func (d *Dispatcher) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	bo := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.logger.Warn("accept failed, retrying",
				ports.Err(err),
				ports.Duration("backoff", bo.Current()),
			)
			if werr := bo.Wait(ctx); werr != nil {
				return nil
			}
			continue
		}
		bo.Reset()
		d.handle(ctx, conn)
	}
}

func (d *Dispatcher) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	if d.readTimeout > 0 {
		_ = conn.SetReadDeadline(d.clock.Now().Add(d.readTimeout))
	}

	req, err := wire.ReadRequest(conn)
	if err != nil {
		conn.Close()
		d.logger.Warn("dropping control connection",
			ports.String("remote", remote),
			ports.String("command", string(req.Kind)),
			ports.Err(err),
		)
		if errors.Is(err, domain.ErrUnknownCommand) {
			d.emitter.OnCommand(req.Kind, domain.ParticipantID(req.ID), "", err)
		}
		return
	}

	d.registry.Prune()
	ack := d.Ack()
	if err := wire.WriteUTF(conn, ack); err != nil {
		d.logger.Warn("failed to send ack",
			ports.String("remote", remote),
			ports.Err(err),
		)
	}
	conn.Close()

	cmd, err := req.Command()
	if err == nil {
		err = d.Execute(ctx, cmd)
	}
	d.emitter.OnCommand(req.Kind, domain.ParticipantID(req.ID), ack, err)

	fields := []ports.Field{
		ports.String("command", string(req.Kind)),
		ports.Int32("participant_id", req.ID),
		ports.String("ack", ack),
	}
	if err != nil {
		d.logger.Warn("command failed", append(fields, ports.Err(err))...)
		return
	}
	d.logger.Info("command executed", fields...)
}

// Ack returns the acknowledgment text for a command received now.
// Every command kind is answered with the capacity notice while the
// registry is full.
func (d *Dispatcher) Ack() string {
	if d.registry.Full() {
		return domain.AckCapacityExceeded
	}
	return domain.AckAccepted
}

// Execute applies one command to the registry.
func (d *Dispatcher) Execute(ctx context.Context, cmd domain.Command) error {
	switch cmd.Kind {
	case domain.CommandRegister:
		return d.registry.Register(ctx, cmd.ID, cmd.Endpoint)

	case domain.CommandDeregister:
		return d.registry.Deregister(ctx, cmd.ID)

	case domain.CommandDisconnect:
		s, err := d.registry.Lookup(cmd.ID)
		if err != nil {
			return err
		}
		return s.Disconnect(d.clock.Now())

	case domain.CommandReconnect:
		s, err := d.registry.Lookup(cmd.ID)
		if err != nil {
			return err
		}
		return s.Reconnect(cmd.Endpoint, d.clock.Now())

	case domain.CommandMsend:
		return d.multicast(cmd.ID, cmd.Message)

	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Kind)
	}
}

// multicast enqueues message for every live session, the sender included.
// Unlike legacy coordinators, which fan out without looking the sender up,
// a message from an unregistered id is rejected.
func (d *Dispatcher) multicast(sender domain.ParticipantID, message string) error {
	if !d.registry.Known(sender) {
		return fmt.Errorf("%w: participant %s", domain.ErrUnknownParticipant, sender)
	}

	msgID := uuid.NewString()
	now := d.clock.Now()
	recipients := d.registry.Snapshot()

	var errs []error
	for _, s := range recipients {
		if err := s.Deliver(msgID, message, now); err != nil {
			errs = append(errs, err)
		}
	}

	d.logger.Debug("multicast enqueued",
		ports.String("msg_id", msgID),
		ports.Int32("sender", int32(sender)),
		ports.Int("recipients", len(recipients)),
		ports.Int("rejected", len(errs)),
	)
	return errors.Join(errs...)
}

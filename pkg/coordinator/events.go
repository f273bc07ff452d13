package coordinator

import (
	"time"

	"github.com/bft-labs/groupcast/internal/app"
	"github.com/bft-labs/groupcast/internal/domain"
)

// EventHandler receives coordinator notifications.
//
// Session events arrive concurrently from the session workers; handlers must
// be safe for concurrent use and return quickly. Embed BaseEventHandler to
// implement only the methods you need.
type EventHandler interface {
	// OnStateChange is called when the coordinator lifecycle state changes.
	OnStateChange(StateChangeEvent)
	// OnSessionStateChange is called when a participant goes online,
	// offline, is deregistered, or fails.
	OnSessionStateChange(SessionStateEvent)
	// OnDelivery is called after a successful push.
	OnDelivery(DeliveryEvent)
	// OnDeliveryError is called when a push fails. The payload is dropped.
	OnDeliveryError(DeliveryErrorEvent)
	// OnBuffered is called when a message is appended to an offline log.
	OnBuffered(BufferedEvent)
	// OnReplay is called after a reconnect replay.
	OnReplay(ReplayEvent)
	// OnCommand is called after each control-plane command.
	OnCommand(CommandEvent)
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// SessionStateEvent describes a session transition.
type SessionStateEvent struct {
	ParticipantID int32
	Previous      string
	Current       string
}

// DeliveryEvent describes a successful push.
type DeliveryEvent struct {
	ParticipantID int32
	Bytes         int
	Duration      time.Duration
}

// DeliveryErrorEvent describes a failed push.
type DeliveryErrorEvent struct {
	ParticipantID int32
	Error         error
}

// BufferedEvent describes a message stored for an offline participant.
type BufferedEvent struct {
	ParticipantID int32
}

// ReplayEvent describes a reconnect replay.
type ReplayEvent struct {
	ParticipantID int32
	// Buffered is the number of log entries found.
	Buffered int
	// Replayed is the number of messages sent.
	Replayed int
	// Sentinel is true when the "no messages" notice was sent instead.
	Sentinel bool
}

// CommandEvent describes one control-plane command.
type CommandEvent struct {
	Command       string
	ParticipantID int32
	Ack           string
	// Error is nil when the command took effect.
	Error error
}

// BaseEventHandler implements EventHandler with no-ops.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)         {}
func (BaseEventHandler) OnSessionStateChange(SessionStateEvent) {}
func (BaseEventHandler) OnDelivery(DeliveryEvent)               {}
func (BaseEventHandler) OnDeliveryError(DeliveryErrorEvent)     {}
func (BaseEventHandler) OnBuffered(BufferedEvent)               {}
func (BaseEventHandler) OnReplay(ReplayEvent)                   {}
func (BaseEventHandler) OnCommand(CommandEvent)                 {}

var _ EventHandler = BaseEventHandler{}

// eventFanout adapts EventHandlers to the internal emitter interfaces.
type eventFanout struct {
	handlers []EventHandler
}

func (e *eventFanout) OnStateChange(previous, current app.State, reason string) {
	ev := StateChangeEvent{Previous: convertState(previous), Current: convertState(current), Reason: reason}
	for _, h := range e.handlers {
		h.OnStateChange(ev)
	}
}

func (e *eventFanout) OnSessionStateChange(id domain.ParticipantID, previous, current domain.SessionState) {
	ev := SessionStateEvent{ParticipantID: int32(id), Previous: previous.String(), Current: current.String()}
	for _, h := range e.handlers {
		h.OnSessionStateChange(ev)
	}
}

func (e *eventFanout) OnDelivery(id domain.ParticipantID, bytes int, duration time.Duration) {
	ev := DeliveryEvent{ParticipantID: int32(id), Bytes: bytes, Duration: duration}
	for _, h := range e.handlers {
		h.OnDelivery(ev)
	}
}

func (e *eventFanout) OnDeliveryError(id domain.ParticipantID, err error) {
	ev := DeliveryErrorEvent{ParticipantID: int32(id), Error: err}
	for _, h := range e.handlers {
		h.OnDeliveryError(ev)
	}
}

func (e *eventFanout) OnBuffered(id domain.ParticipantID) {
	ev := BufferedEvent{ParticipantID: int32(id)}
	for _, h := range e.handlers {
		h.OnBuffered(ev)
	}
}

func (e *eventFanout) OnReplay(id domain.ParticipantID, buffered, replayed int, sentinel bool) {
	ev := ReplayEvent{ParticipantID: int32(id), Buffered: buffered, Replayed: replayed, Sentinel: sentinel}
	for _, h := range e.handlers {
		h.OnReplay(ev)
	}
}

func (e *eventFanout) OnCommand(kind domain.CommandKind, id domain.ParticipantID, ack string, err error) {
	ev := CommandEvent{Command: string(kind), ParticipantID: int32(id), Ack: ack, Error: err}
	for _, h := range e.handlers {
		h.OnCommand(ev)
	}
}

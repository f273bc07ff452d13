package app

import (
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
)

// SessionEventEmitter receives notifications from session workers.
// Calls arrive concurrently from different sessions; implementations must be
// safe for concurrent use and return quickly.
type SessionEventEmitter interface {
	OnSessionStateChange(id domain.ParticipantID, previous, current domain.SessionState)
	OnDelivery(id domain.ParticipantID, bytes int, duration time.Duration)
	OnDeliveryError(id domain.ParticipantID, err error)
	OnReplay(id domain.ParticipantID, buffered, replayed int, sentinel bool)
	OnBuffered(id domain.ParticipantID)
}

// CommandEventEmitter is called by the dispatcher after each command.
type CommandEventEmitter interface {
	OnCommand(kind domain.CommandKind, id domain.ParticipantID, ack string, err error)
}

// EventEmitter combines all coordinator notifications.
type EventEmitter interface {
	SessionEventEmitter
	CommandEventEmitter
}

type noopEmitter struct{}

func (noopEmitter) OnSessionStateChange(domain.ParticipantID, domain.SessionState, domain.SessionState) {
}
func (noopEmitter) OnDelivery(domain.ParticipantID, int, time.Duration)               {}
func (noopEmitter) OnDeliveryError(domain.ParticipantID, error)                       {}
func (noopEmitter) OnReplay(domain.ParticipantID, int, int, bool)                     {}
func (noopEmitter) OnBuffered(domain.ParticipantID)                                   {}
func (noopEmitter) OnCommand(domain.CommandKind, domain.ParticipantID, string, error) {}

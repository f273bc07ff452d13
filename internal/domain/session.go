package domain

import (
	"net"
	"strconv"
)

// MaxSessions is the number of sessions the registry admits at once.
const MaxSessions = 10

// ParticipantID identifies a participant. It travels as an int32 on the wire.
type ParticipantID int32

// String returns the decimal form of the id.
func (id ParticipantID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// SessionState is the connectivity state of one participant session.
type SessionState int

const (
	StateOnline SessionState = iota
	StateOffline
	StateDeregistered
	// StateFailed marks a session whose offline log became unusable.
	// The worker has stopped and the registry drops the session.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateOnline:
		return "Online"
	case StateOffline:
		return "Offline"
	case StateDeregistered:
		return "Deregistered"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further events are processed in this state.
func (s SessionState) Terminal() bool {
	return s == StateDeregistered || s == StateFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Online and Offline toggle freely; Deregistered and Failed are reachable
// from either and are terminal.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StateOnline, StateOffline, StateDeregistered, StateFailed:
		return true
	default:
		return false
	}
}

// Endpoint is the address a participant listens on for pushed messages.
type Endpoint struct {
	Address string `json:"address"`
	Port    int32  `json:"port"`
}

// String returns the dialable host:port form.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Address, strconv.FormatInt(int64(e.Port), 10))
}

// ParseSessionState is the inverse of SessionState.String.
func ParseSessionState(s string) (SessionState, bool) {
	for _, st := range []SessionState{StateOnline, StateOffline, StateDeregistered, StateFailed} {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

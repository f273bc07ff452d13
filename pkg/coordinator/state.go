package coordinator

import (
	"time"

	"github.com/bft-labs/groupcast/internal/app"
	"github.com/bft-labs/groupcast/internal/domain"
)

// State is the lifecycle state of a Coordinator.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

func convertState(s app.State) State {
	switch s {
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// Session describes one registered participant.
type Session struct {
	ID             int32
	Address        string
	Port           int32
	State          string
	DisconnectedAt time.Time
	ReconnectedAt  time.Time
	// Pending is the number of events not yet processed by the session.
	Pending int
}

// Online reports whether pushes go straight to the participant.
func (s Session) Online() bool {
	return s.State == domain.StateOnline.String()
}

func convertSession(info app.SessionInfo) Session {
	s := Session{
		ID:      int32(info.ID),
		Address: info.Endpoint.Address,
		Port:    info.Endpoint.Port,
		State:   info.State.String(),
		Pending: info.Pending,
	}
	if info.DisconnectedAt != 0 {
		s.DisconnectedAt = time.Unix(info.DisconnectedAt, 0)
	}
	if info.ReconnectedAt != 0 {
		s.ReconnectedAt = time.Unix(info.ReconnectedAt, 0)
	}
	return s
}

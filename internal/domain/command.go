package domain

// CommandKind names a control-plane command as it appears on the wire.
type CommandKind string

const (
	CommandRegister   CommandKind = "register"
	CommandDeregister CommandKind = "deregister"
	CommandDisconnect CommandKind = "disconnect"
	CommandReconnect  CommandKind = "reconnect"
	CommandMsend      CommandKind = "msend"
)

// Acknowledgment texts returned for every control-plane command.
const (
	AckAccepted         = "command acknowledged"
	AckCapacityExceeded = "capacity exceeded"
)

// Valid reports whether k is a known command.
func (k CommandKind) Valid() bool {
	switch k {
	case CommandRegister, CommandDeregister, CommandDisconnect, CommandReconnect, CommandMsend:
		return true
	default:
		return false
	}
}

// HasEndpoint reports whether the command carries a listen port and address.
func (k CommandKind) HasEndpoint() bool {
	return k == CommandRegister || k == CommandReconnect
}

// Command is one decoded control-plane request.
// Endpoint is set for register and reconnect; Message for msend.
type Command struct {
	Kind     CommandKind
	ID       ParticipantID
	Endpoint Endpoint
	Message  string
}

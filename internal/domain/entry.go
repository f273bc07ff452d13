package domain

// ReplaySentinel is pushed on reconnect when no buffered message qualifies.
const ReplaySentinel = "No messages received since last online."

// ReplaySeparator joins replayed messages into a single push payload.
const ReplaySeparator = "\t"

// LogEntry is one message buffered while its recipient was offline.
// ArrivedAt is in unix seconds, the resolution the replay window works in.
type LogEntry struct {
	Message   string
	ArrivedAt int64
}

package domain

import "errors"

// Domain errors represent error conditions in the groupcast domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running coordinator.
	ErrAlreadyRunning = errors.New("groupcast: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped coordinator.
	ErrNotRunning = errors.New("groupcast: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("groupcast: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("groupcast: invalid configuration")

	// ErrCapacityExceeded is returned when a register arrives while the
	// registry already holds the maximum number of sessions.
	ErrCapacityExceeded = errors.New("groupcast: capacity exceeded")

	// ErrUnknownParticipant is returned when a command names an id that is
	// not present in the registry.
	ErrUnknownParticipant = errors.New("groupcast: unknown participant")

	// ErrDuplicateParticipant is returned when a register names an id that
	// already has a live session.
	ErrDuplicateParticipant = errors.New("groupcast: participant already registered")

	// ErrDeliveryFailed is returned when a push to a participant endpoint fails.
	ErrDeliveryFailed = errors.New("groupcast: delivery failed")

	// ErrStorage is returned when the offline log cannot be appended, read,
	// truncated or removed. It is fatal to the owning session only.
	ErrStorage = errors.New("groupcast: offline log failure")

	// ErrSessionClosed is returned when an event is sent to a session whose
	// worker has already stopped.
	ErrSessionClosed = errors.New("groupcast: session closed")

	// ErrMalformedAddress is returned when a self-reported address is too
	// short to carry the fixed-width host label.
	ErrMalformedAddress = errors.New("groupcast: malformed self-reported address")

	// ErrUnknownCommand is returned when the control plane receives a
	// command name it does not understand.
	ErrUnknownCommand = errors.New("groupcast: unknown command")
)

package coordinator

import "github.com/bft-labs/groupcast/internal/domain"

// Errors returned by the coordinator. Check with errors.Is.
var (
	ErrAlreadyRunning       = domain.ErrAlreadyRunning
	ErrNotRunning           = domain.ErrNotRunning
	ErrShutdownTimeout      = domain.ErrShutdownTimeout
	ErrInvalidConfig        = domain.ErrInvalidConfig
	ErrCapacityExceeded     = domain.ErrCapacityExceeded
	ErrUnknownParticipant   = domain.ErrUnknownParticipant
	ErrDuplicateParticipant = domain.ErrDuplicateParticipant
	ErrDeliveryFailed       = domain.ErrDeliveryFailed
	ErrStorage              = domain.ErrStorage
)

package ports

import (
	"context"

	"github.com/bft-labs/groupcast/internal/domain"
)

// OfflineStore hands out the durable per-participant offline logs.
type OfflineStore interface {
	// Open returns the log for id, creating its backing resource if it does
	// not exist yet. Existing content is kept.
	Open(ctx context.Context, id domain.ParticipantID) (OfflineLog, error)

	// List returns the ids that currently have a backing resource.
	List(ctx context.Context) ([]domain.ParticipantID, error)
}

// OfflineLog is the append-only buffer of one participant.
// A log is owned by exactly one session worker; implementations need not be
// safe for concurrent use.
type OfflineLog interface {
	// Append adds entry at the end of the log.
	Append(ctx context.Context, entry domain.LogEntry) error

	// ReadAll returns every entry in append order.
	ReadAll(ctx context.Context) ([]domain.LogEntry, error)

	// Truncate empties the log, keeping its backing resource.
	Truncate(ctx context.Context) error

	// Remove deletes the backing resource. The log must not be used afterwards.
	Remove(ctx context.Context) error
}

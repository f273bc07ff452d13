package ports

import (
	"context"

	"github.com/bft-labs/groupcast/internal/domain"
)

// SessionRecord is the persisted form of one registry entry.
type SessionRecord struct {
	ID             domain.ParticipantID `json:"id"`
	Endpoint       domain.Endpoint      `json:"endpoint"`
	State          string               `json:"state"`
	DisconnectedAt int64                `json:"disconnected_at,omitempty"`
	ReconnectedAt  int64                `json:"reconnected_at,omitempty"`
}

// RegistryRepository handles registry persistence across coordinator restarts.
type RegistryRepository interface {
	// Load retrieves the last saved snapshot.
	// Returns an empty slice and nil error if nothing has been saved yet.
	Load(ctx context.Context) ([]SessionRecord, error)

	// Save persists the snapshot atomically.
	Save(ctx context.Context, records []SessionRecord) error
}

package ports

import (
	"context"

	"github.com/bft-labs/groupcast/internal/domain"
)

// Pusher delivers a single text payload to a participant's listener.
// Implementations open a short-lived connection per call, write exactly one
// framed payload, and close. There is no acknowledgment of receipt.
type Pusher interface {
	// Push writes payload to endpoint.
	// Cancelling ctx aborts an in-flight connect or write.
	Push(ctx context.Context, endpoint domain.Endpoint, payload string) error
}

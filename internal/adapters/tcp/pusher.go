// Package tcp delivers payloads to participant listeners over short-lived
// TCP connections.
package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
	"github.com/bft-labs/groupcast/internal/wire"
)

// Pusher implements ports.Pusher: dial, write one text, close.
type Pusher struct {
	dialer  net.Dialer
	timeout time.Duration
	logger  ports.Logger
}

// NewPusher creates a pusher. A zero timeout means no deadline beyond the
// caller's context.
func NewPusher(timeout time.Duration, logger ports.Logger) *Pusher {
	return &Pusher{
		dialer:  net.Dialer{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Push delivers payload to endpoint. Cancelling ctx aborts both the dial and
// a blocked write.
func (p *Pusher) Push(ctx context.Context, endpoint domain.Endpoint, payload string) error {
	frame, err := wire.EncodeUTF(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	addr := endpoint.String()
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", domain.ErrDeliveryFailed, addr, err)
	}
	defer conn.Close()

	if p.timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(p.timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.Write(frame); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: write %s: %v", domain.ErrDeliveryFailed, addr, ctxErr)
		}
		return fmt.Errorf("%w: write %s: %v", domain.ErrDeliveryFailed, addr, err)
	}

	p.logger.Debug("pushed payload",
		ports.String("endpoint", addr),
		ports.Int("bytes", len(frame)),
	)
	return nil
}

var _ ports.Pusher = (*Pusher)(nil)

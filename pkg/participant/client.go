package participant

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/wire"
)

// Client sends control-plane commands for one participant id.
// Each command uses its own short-lived connection.
type Client struct {
	addr      string
	id        int32
	advertise string
	dialer    net.Dialer
}

// NewClient returns a client for coordinator addr. advertise is the host the
// coordinator should dial back for pushes.
func NewClient(addr string, id int32, advertise string, dialTimeout time.Duration) *Client {
	return &Client{
		addr:      addr,
		id:        id,
		advertise: advertise,
		dialer:    net.Dialer{Timeout: dialTimeout},
	}
}

// ID returns the participant id the client speaks for.
func (c *Client) ID() int32 { return c.id }

// Register asks the coordinator to admit this participant, pushing to port.
func (c *Client) Register(ctx context.Context, port int) (string, error) {
	return c.do(ctx, wire.Request{Kind: domain.CommandRegister, Port: int32(port), Identity: wire.Identity(c.advertise)})
}

// Deregister leaves the group.
func (c *Client) Deregister(ctx context.Context) (string, error) {
	return c.do(ctx, wire.Request{Kind: domain.CommandDeregister})
}

// Disconnect asks the coordinator to buffer messages until Reconnect.
func (c *Client) Disconnect(ctx context.Context) (string, error) {
	return c.do(ctx, wire.Request{Kind: domain.CommandDisconnect})
}

// Reconnect resumes delivery on port. The coordinator first pushes the
// buffered messages as one replay payload.
func (c *Client) Reconnect(ctx context.Context, port int) (string, error) {
	return c.do(ctx, wire.Request{Kind: domain.CommandReconnect, Port: int32(port), Identity: wire.Identity(c.advertise)})
}

// Msend multicasts message to every registered participant, this one
// included.
func (c *Client) Msend(ctx context.Context, message string) (string, error) {
	return c.do(ctx, wire.Request{Kind: domain.CommandMsend, Message: message})
}

func (c *Client) do(ctx context.Context, req wire.Request) (string, error) {
	req.ID = c.id

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", fmt.Errorf("dial coordinator %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := wire.WriteRequest(conn, req); err != nil {
		return "", fmt.Errorf("send %s: %w", req.Kind, err)
	}
	ack, err := wire.ReadUTF(conn)
	if err != nil {
		return "", fmt.Errorf("read %s ack: %w", req.Kind, err)
	}
	return ack, nil
}

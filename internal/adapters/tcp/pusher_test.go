package tcp

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/wire"
	"github.com/bft-labs/groupcast/pkg/log"
)

func endpointOf(t *testing.T, ln net.Listener) domain.Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return domain.Endpoint{Address: host, Port: int32(port)}
}

func TestPusher_DeliversOneFramedPayload(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		msg, err := wire.ReadUTF(conn)
		if err != nil {
			return
		}
		got <- msg
	}()

	p := NewPusher(time.Second, log.NewNoopLogger())
	require.NoError(t, p.Push(context.Background(), endpointOf(t, ln), "hello there"))

	select {
	case msg := <-got:
		require.Equal(t, "hello there", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not receive payload")
	}
}

func TestPusher_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := endpointOf(t, ln)
	require.NoError(t, ln.Close())

	p := NewPusher(time.Second, log.NewNoopLogger())
	err = p.Push(context.Background(), ep, "lost")
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
}

func TestPusher_CancelledContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPusher(0, log.NewNoopLogger())
	err = p.Push(ctx, endpointOf(t, ln), "never")
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
}

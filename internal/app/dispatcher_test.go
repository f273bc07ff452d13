package app

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/wire"
)

func serve(t *testing.T, env *testEnv) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.disp.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
	return ln.Addr().String()
}

func send(t *testing.T, addr string, req wire.Request) (string, error) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, wire.WriteRequest(conn, req))
	return wire.ReadUTF(conn)
}

func registerReq(id, port int32) wire.Request {
	return wire.Request{Kind: domain.CommandRegister, ID: id, Port: port, Identity: wire.Identity("127.0.0.1")}
}

func TestDispatcher_RegisterOverTheWire(t *testing.T) {
	env := newTestEnv(t, 5)
	addr := serve(t, env)

	ack, err := send(t, addr, registerReq(1, 9001))
	require.NoError(t, err)
	require.Equal(t, domain.AckAccepted, ack)

	require.Eventually(t, func() bool { return env.registry.Known(1) }, 5*time.Second, 5*time.Millisecond)
	s, err := env.registry.Lookup(1)
	require.NoError(t, err)
	require.Equal(t, domain.Endpoint{Address: "127.0.0.1", Port: 9001}, s.Info().Endpoint)
}

func TestDispatcher_CapacityAckForEveryCommand(t *testing.T) {
	env := newTestEnv(t, 5)
	addr := serve(t, env)

	for id := int32(1); id <= domain.MaxSessions; id++ {
		ack, err := send(t, addr, registerReq(id, 9000+id))
		require.NoError(t, err)
		require.Equal(t, domain.AckAccepted, ack)
	}
	require.Eventually(t, env.registry.Full, 5*time.Second, 5*time.Millisecond)

	ack, err := send(t, addr, registerReq(11, 9011))
	require.NoError(t, err)
	require.Equal(t, domain.AckCapacityExceeded, ack)

	ack, err = send(t, addr, wire.Request{Kind: domain.CommandDisconnect, ID: 1})
	require.NoError(t, err)
	require.Equal(t, domain.AckCapacityExceeded, ack)

	ack, err = send(t, addr, wire.Request{Kind: domain.CommandMsend, ID: 1, Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, domain.AckCapacityExceeded, ack)

	// Commands still execute after the capacity notice.
	require.Eventually(t, func() bool {
		s, err := env.registry.Lookup(1)
		return err == nil && s.State() == domain.StateOffline
	}, 5*time.Second, 5*time.Millisecond)
	require.False(t, env.registry.Known(11))
}

func TestDispatcher_UnknownCommandGetsNoAck(t *testing.T) {
	env := newTestEnv(t, 5)
	addr := serve(t, env)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, wire.WriteUTF(conn, "shout"))
	_, err = wire.ReadUTF(conn)
	require.Error(t, err)

	// The acceptor keeps serving.
	ack, err := send(t, addr, registerReq(1, 9001))
	require.NoError(t, err)
	require.Equal(t, domain.AckAccepted, ack)
}

func TestDispatcher_MalformedAddressIsAckedButIgnored(t *testing.T) {
	env := newTestEnv(t, 5)
	addr := serve(t, env)

	ack, err := send(t, addr, wire.Request{Kind: domain.CommandRegister, ID: 1, Port: 9001, Identity: "short"})
	require.NoError(t, err)
	require.Equal(t, domain.AckAccepted, ack)

	ack, err = send(t, addr, registerReq(2, 9002))
	require.NoError(t, err)
	require.Equal(t, domain.AckAccepted, ack)

	require.Eventually(t, func() bool { return env.registry.Known(2) }, 5*time.Second, 5*time.Millisecond)
	require.False(t, env.registry.Known(1))
}

func TestDispatcher_MulticastIncludesSender(t *testing.T) {
	env := newTestEnv(t, 5)
	for id := domain.ParticipantID(1); id <= 3; id++ {
		env.register(t, id, 9000+int32(id))
	}

	require.NoError(t, env.exec(t, 1, msend(2, "to everyone")))
	env.settle(t)

	for port := int32(9001); port <= 9003; port++ {
		require.Equal(t, []string{"to everyone"}, env.pusher.PayloadsTo(port))
	}
}

func TestDispatcher_MulticastFromUnknownSender(t *testing.T) {
	env := newTestEnv(t, 5)
	env.register(t, 1, 9001)

	require.ErrorIs(t, env.exec(t, 1, msend(9, "who am i")), domain.ErrUnknownParticipant)
	env.settle(t)
	require.Empty(t, env.pusher.Pushes())
}

func TestDispatcher_ServeStopsOnClosedListener(t *testing.T) {
	env := newTestEnv(t, 5)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	require.NoError(t, env.disp.Serve(context.Background(), ln))
}

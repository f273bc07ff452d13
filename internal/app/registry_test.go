package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/internal/domain"
	"github.com/bft-labs/groupcast/internal/ports"
)

func TestRegistry_CapacityRejectsEleventh(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	for id := domain.ParticipantID(1); id <= domain.MaxSessions; id++ {
		require.NoError(t, env.registry.Register(ctx, id, endpoint(9000+int32(id))))
	}
	require.True(t, env.registry.Full())

	err := env.registry.Register(ctx, 11, endpoint(9011))
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	require.Equal(t, domain.MaxSessions, env.registry.Len())
	require.False(t, env.registry.Known(11))

	require.NoError(t, env.registry.Deregister(ctx, 3))
	require.False(t, env.registry.Full())
	require.NoError(t, env.registry.Register(ctx, 11, endpoint(9011)))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	require.NoError(t, env.registry.Register(ctx, 7, endpoint(9007)))
	err := env.registry.Register(ctx, 7, endpoint(9999))
	require.ErrorIs(t, err, domain.ErrDuplicateParticipant)

	s, err := env.registry.Lookup(7)
	require.NoError(t, err)
	require.Equal(t, endpoint(9007), s.Info().Endpoint)
}

func TestRegistry_UnknownParticipant(t *testing.T) {
	env := newTestEnv(t, 5)

	_, err := env.registry.Lookup(42)
	require.ErrorIs(t, err, domain.ErrUnknownParticipant)
	require.ErrorIs(t, env.registry.Deregister(context.Background(), 42), domain.ErrUnknownParticipant)
}

func TestRegistry_SnapshotOrderedByID(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	for _, id := range []domain.ParticipantID{5, 1, 3} {
		require.NoError(t, env.registry.Register(ctx, id, endpoint(9000+int32(id))))
	}

	var ids []domain.ParticipantID
	for _, s := range env.registry.Snapshot() {
		ids = append(ids, s.ID())
	}
	require.Equal(t, []domain.ParticipantID{1, 3, 5}, ids)
}

func TestRegistry_RegisterStartsWithEmptyLog(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	l, err := env.store.Open(ctx, 4)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, domain.LogEntry{Message: "from a previous registration", ArrivedAt: 1}))

	require.NoError(t, env.registry.Register(ctx, 4, endpoint(9004)))
	require.Empty(t, env.logEntries(t, 4))

	// A short outage with nothing sent replays the sentinel, not stale content.
	require.NoError(t, env.exec(t, 100, disconnect(4)))
	require.NoError(t, env.exec(t, 101, reconnect(4, 9104)))
	env.settle(t)
	require.Equal(t, []string{domain.ReplaySentinel}, env.pusher.PayloadsTo(9104))
}

func TestRegistry_RestoreAndStopAll(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	records := []ports.SessionRecord{
		{ID: 2, Endpoint: endpoint(9002), State: "Offline", DisconnectedAt: 100},
		{ID: 1, Endpoint: endpoint(9001), State: "Online"},
		{ID: 1, Endpoint: endpoint(9001), State: "Online"},
		{ID: 3, Endpoint: endpoint(9003), State: "Deregistered"},
		{ID: 4, Endpoint: endpoint(9004), State: "bogus"},
	}
	n, err := env.registry.Restore(ctx, records)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got := env.registry.Records()
	require.Equal(t, []ports.SessionRecord{
		{ID: 1, Endpoint: endpoint(9001), State: "Online"},
		{ID: 2, Endpoint: endpoint(9002), State: "Offline", DisconnectedAt: 100},
	}, got)

	// The restored offline session keeps buffering.
	env.clock.Set(105)
	require.NoError(t, env.exec(t, 105, msend(1, "queued")))
	env.settle(t)
	require.Equal(t, []domain.LogEntry{{Message: "queued", ArrivedAt: 105}}, env.logEntries(t, 2))

	require.NoError(t, env.registry.StopAll(ctx))
	require.FileExists(t, env.store.Path(2))
	require.Equal(t, got, env.registry.Records())
}

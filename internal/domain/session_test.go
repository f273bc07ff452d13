package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionState_Transitions(t *testing.T) {
	tests := []struct {
		from, to SessionState
		want     bool
	}{
		{StateOnline, StateOffline, true},
		{StateOffline, StateOnline, true},
		{StateOnline, StateOnline, true},
		{StateOffline, StateDeregistered, true},
		{StateOnline, StateFailed, true},
		{StateDeregistered, StateOnline, false},
		{StateDeregistered, StateOffline, false},
		{StateFailed, StateOnline, false},
		{StateOnline, SessionState(42), false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.from, tt.to), func(t *testing.T) {
			require.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSessionState_ParseRoundTrip(t *testing.T) {
	for _, st := range []SessionState{StateOnline, StateOffline, StateDeregistered, StateFailed} {
		got, ok := ParseSessionState(st.String())
		require.True(t, ok)
		require.Equal(t, st, got)
	}

	_, ok := ParseSessionState("Unknown")
	require.False(t, ok)
}

func TestEndpoint_String(t *testing.T) {
	require.Equal(t, "127.0.0.1:9001", Endpoint{Address: "127.0.0.1", Port: 9001}.String())
	require.Equal(t, "[::1]:80", Endpoint{Address: "::1", Port: 80}.String())
}

func TestCommandKind(t *testing.T) {
	require.True(t, CommandMsend.Valid())
	require.False(t, CommandKind("shout").Valid())
	require.True(t, CommandRegister.HasEndpoint())
	require.True(t, CommandReconnect.HasEndpoint())
	require.False(t, CommandDisconnect.HasEndpoint())
}

func TestErrorsWrap(t *testing.T) {
	err := fmt.Errorf("participant 3: %w", ErrUnknownParticipant)
	require.True(t, errors.Is(err, ErrUnknownParticipant))
	require.False(t, errors.Is(err, ErrCapacityExceeded))
}

package groupcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/pkg/coordinator"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, ":5000", cfg.ListenAddr)
	require.Equal(t, int64(30), cfg.Threshold)
	require.Equal(t, MaxSessions, cfg.Capacity)
	require.Equal(t, ".", cfg.LogDir)
	require.Equal(t, ".", cfg.StateDir)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.LogDir = t.TempDir()
	cfg.StateDir = ""

	events := &stateRecorder{running: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, coordinator.WithEventHandler(events)) }()

	select {
	case <-events.running:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not start")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = -1
	require.ErrorIs(t, Run(context.Background(), cfg), coordinator.ErrInvalidConfig)
}

type stateRecorder struct {
	coordinator.BaseEventHandler
	running chan struct{}
}

func (r *stateRecorder) OnStateChange(e coordinator.StateChangeEvent) {
	if e.Current == coordinator.StateRunning {
		select {
		case r.running <- struct{}{}:
		default:
		}
	}
}

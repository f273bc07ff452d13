package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/groupcast/pkg/coordinator"
	"github.com/bft-labs/groupcast/pkg/participant"
)

type fakeController struct {
	threshold int64
	sessions  []coordinator.Session
}

func (c *fakeController) Threshold() int64                { return c.threshold }
func (c *fakeController) SetThreshold(v int64)            { c.threshold = v }
func (c *fakeController) Sessions() []coordinator.Session { return c.sessions }

func TestEventsAreCounted(t *testing.T) {
	p := New(DefaultConfig())

	p.OnDelivery(coordinator.DeliveryEvent{ParticipantID: 1, Bytes: 10, Duration: time.Millisecond})
	p.OnDelivery(coordinator.DeliveryEvent{ParticipantID: 2, Bytes: 5})
	p.OnDeliveryError(coordinator.DeliveryErrorEvent{ParticipantID: 3, Error: errors.New("refused")})
	p.OnBuffered(coordinator.BufferedEvent{ParticipantID: 3})
	p.OnReplay(coordinator.ReplayEvent{ParticipantID: 3, Buffered: 4, Replayed: 3})
	p.OnReplay(coordinator.ReplayEvent{ParticipantID: 4, Sentinel: true})
	p.OnSessionStateChange(coordinator.SessionStateEvent{ParticipantID: 3, Previous: "Online", Current: "Offline"})
	p.OnCommand(coordinator.CommandEvent{Command: "msend", ParticipantID: 1, Ack: "command acknowledged"})
	p.OnCommand(coordinator.CommandEvent{Command: "register", ParticipantID: 11, Ack: "capacity exceeded", Error: errors.New("full")})
	p.OnCommand(coordinator.CommandEvent{Command: "bogus", Error: errors.New("unknown")})

	require.Equal(t, 2.0, testutil.ToFloat64(p.deliveries))
	require.Equal(t, 15.0, testutil.ToFloat64(p.deliveredBytes))
	require.Equal(t, 1.0, testutil.ToFloat64(p.deliveryErrors))
	require.Equal(t, 1.0, testutil.ToFloat64(p.buffered))
	require.Equal(t, 1.0, testutil.ToFloat64(p.replays.WithLabelValues("replayed")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.replays.WithLabelValues("sentinel")))
	require.Equal(t, 3.0, testutil.ToFloat64(p.replayedMessages))
	require.Equal(t, 1.0, testutil.ToFloat64(p.sessionChanges.WithLabelValues("Offline")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.commands.WithLabelValues("msend", "accepted", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.commands.WithLabelValues("register", "capacity_exceeded", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.commands.WithLabelValues("bogus", "none", "error")))
}

func TestRunningGauge(t *testing.T) {
	p := New(DefaultConfig())
	p.OnStateChange(coordinator.StateChangeEvent{Current: coordinator.StateRunning})
	require.Equal(t, 1.0, testutil.ToFloat64(p.running))
	p.OnStateChange(coordinator.StateChangeEvent{Current: coordinator.StateStopping})
	require.Equal(t, 0.0, testutil.ToFloat64(p.running))
}

func TestSessionGaugesReadController(t *testing.T) {
	p := New(DefaultConfig())
	ctrl := &fakeController{
		threshold: 30,
		sessions: []coordinator.Session{
			{ID: 1, State: "Online"},
			{ID: 2, State: "Offline"},
			{ID: 3, State: "Online"},
		},
	}
	require.NoError(t, p.Initialize(context.Background(), coordinator.PluginConfig{Coordinator: ctrl}))
	defer p.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	require.Contains(t, body, "groupcast_sessions 3")
	require.Contains(t, body, "groupcast_sessions_online 2")
	require.Contains(t, body, "groupcast_replay_threshold_seconds 30")
}

func TestGaugesWithoutController(t *testing.T) {
	p := New(DefaultConfig())
	require.Zero(t, p.sessionCount())
	require.Zero(t, p.onlineCount())
	require.Zero(t, p.threshold())
	require.Nil(t, p.Addr())
}

func TestServesMetricsEndpoint(t *testing.T) {
	p := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, p.Initialize(context.Background(), coordinator.PluginConfig{Coordinator: &fakeController{}}))

	addr := p.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "groupcast_running")

	require.NoError(t, p.Shutdown(context.Background()))
	require.Nil(t, p.Addr())
}

func TestWithCoordinator(t *testing.T) {
	p := New(DefaultConfig())
	c, err := coordinator.New(coordinator.Config{
		ListenAddr: "127.0.0.1:0",
		Threshold:  30,
		LogDir:     t.TempDir(),
	}, coordinator.WithPlugin(p))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	member, err := participant.New(participant.Config{
		ID:          1,
		Coordinator: c.Addr().String(),
		InboxPath:   filepath.Join(t.TempDir(), "inbox.txt"),
	})
	require.NoError(t, err)
	defer member.Close()

	_, err = member.Register(context.Background(), 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.sessionCount() == 1 &&
			testutil.ToFloat64(p.commands.WithLabelValues("register", "accepted", "ok")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(p.running))
}

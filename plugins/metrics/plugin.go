// Package metrics exports coordinator activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/groupcast/pkg/coordinator"
	"github.com/bft-labs/groupcast/pkg/log"
)

const namespace = "groupcast"

// Config holds configuration options for the metrics plugin.
type Config struct {
	// Addr is the HTTP listen address for /metrics. Empty records metrics
	// without serving them; use Handler to mount them elsewhere.
	Addr string
}

// DefaultConfig returns a Config that records metrics without serving them.
func DefaultConfig() Config {
	return Config{}
}

// Plugin records coordinator events into a private Prometheus registry.
// It implements coordinator.EventHandler, so registering it as a plugin is
// enough to receive events.
type Plugin struct {
	addr     string
	registry *prometheus.Registry

	running          prometheus.Gauge
	sessionChanges   *prometheus.CounterVec
	deliveries       prometheus.Counter
	deliveredBytes   prometheus.Counter
	deliveryDuration prometheus.Histogram
	deliveryErrors   prometheus.Counter
	buffered         prometheus.Counter
	replays          *prometheus.CounterVec
	replayedMessages prometheus.Counter
	commands         *prometheus.CounterVec

	mu         sync.RWMutex
	controller coordinator.Controller
	logger     log.Logger
	server     *http.Server
	ln         net.Listener
	wg         sync.WaitGroup
}

// New creates the plugin and registers its collectors.
func New(cfg Config) *Plugin {
	p := &Plugin{
		addr:     cfg.Addr,
		registry: prometheus.NewRegistry(),
		logger:   log.NewNoopLogger(),

		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 if the coordinator is running, else 0",
		}),
		sessionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by target state",
		}, []string{"state"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "deliveries_total",
			Help:      "Payloads pushed to participants",
		}),
		deliveredBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "bytes_total",
			Help:      "Payload bytes pushed to participants",
		}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "duration_seconds",
			Help:      "Duration of one push",
			Buckets:   prometheus.DefBuckets,
		}),
		deliveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "errors_total",
			Help:      "Pushes that failed; the payload was dropped",
		}),
		buffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "buffered_total",
			Help:      "Messages appended to offline logs",
		}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "replays_total",
			Help:      "Reconnect replays by result",
		}, []string{"result"}),
		replayedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "replayed_messages_total",
			Help:      "Buffered messages sent on reconnect",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "commands_total",
			Help:      "Control-plane commands by kind and outcome",
		}, []string{"command", "ack", "result"}),
	}

	p.registry.MustRegister(
		p.running,
		p.sessionChanges,
		p.deliveries,
		p.deliveredBytes,
		p.deliveryDuration,
		p.deliveryErrors,
		p.buffered,
		p.replays,
		p.replayedMessages,
		p.commands,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Registered participants",
		}, p.sessionCount),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_online",
			Help:      "Registered participants receiving live pushes",
		}, p.onlineCount),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replay_threshold_seconds",
			Help:      "Current replay window",
		}, p.threshold),
	)
	return p
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "metrics"
}

// Registry returns the plugin's Prometheus registry.
func (p *Plugin) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the plugin's metrics in the Prometheus exposition format.
func (p *Plugin) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Addr returns the metrics listener address, or nil when not serving.
func (p *Plugin) Addr() net.Addr {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ln == nil {
		return nil
	}
	return p.ln.Addr()
}

// Initialize binds the coordinator and starts the HTTP endpoint if
// configured.
func (p *Plugin) Initialize(ctx context.Context, cfg coordinator.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	p.controller = cfg.Coordinator

	if p.addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	p.ln = ln

	server := p.server
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server stopped", log.Err(err))
		}
	}()
	p.logger.Info("metrics endpoint listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown stops the HTTP endpoint.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	server := p.server
	p.server = nil
	p.ln = nil
	p.mu.Unlock()

	p.running.Set(0)
	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	p.wg.Wait()
	return err
}

func (p *Plugin) OnStateChange(e coordinator.StateChangeEvent) {
	if e.Current == coordinator.StateRunning {
		p.running.Set(1)
	} else {
		p.running.Set(0)
	}
}

func (p *Plugin) OnSessionStateChange(e coordinator.SessionStateEvent) {
	p.sessionChanges.WithLabelValues(e.Current).Inc()
}

func (p *Plugin) OnDelivery(e coordinator.DeliveryEvent) {
	p.deliveries.Inc()
	p.deliveredBytes.Add(float64(e.Bytes))
	p.deliveryDuration.Observe(e.Duration.Seconds())
}

func (p *Plugin) OnDeliveryError(coordinator.DeliveryErrorEvent) {
	p.deliveryErrors.Inc()
}

func (p *Plugin) OnBuffered(coordinator.BufferedEvent) {
	p.buffered.Inc()
}

func (p *Plugin) OnReplay(e coordinator.ReplayEvent) {
	result := "replayed"
	if e.Sentinel {
		result = "sentinel"
	}
	p.replays.WithLabelValues(result).Inc()
	p.replayedMessages.Add(float64(e.Replayed))
}

func (p *Plugin) OnCommand(e coordinator.CommandEvent) {
	result := "ok"
	if e.Error != nil {
		result = "error"
	}
	p.commands.WithLabelValues(e.Command, ackLabel(e.Ack), result).Inc()
}

func ackLabel(ack string) string {
	switch ack {
	case "":
		return "none"
	case "capacity exceeded":
		return "capacity_exceeded"
	default:
		return "accepted"
	}
}

func (p *Plugin) sessions() []coordinator.Session {
	p.mu.RLock()
	c := p.controller
	p.mu.RUnlock()
	if c == nil {
		return nil
	}
	return c.Sessions()
}

func (p *Plugin) sessionCount() float64 {
	return float64(len(p.sessions()))
}

func (p *Plugin) onlineCount() float64 {
	n := 0
	for _, s := range p.sessions() {
		if s.Online() {
			n++
		}
	}
	return float64(n)
}

func (p *Plugin) threshold() float64 {
	p.mu.RLock()
	c := p.controller
	p.mu.RUnlock()
	if c == nil {
		return 0
	}
	return float64(c.Threshold())
}

var (
	_ coordinator.Plugin       = (*Plugin)(nil)
	_ coordinator.EventHandler = (*Plugin)(nil)
)
